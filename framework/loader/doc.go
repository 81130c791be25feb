// Package loader reads configuration files into a container.
//
// YAML, TOML and HCL files share one document model:
//
//	imports:    [other.yaml, {resource: optional.yaml, ignore_errors: not_found}]
//	parameters: {name: value}
//	services:   {id: {class: ..., arguments: [...], tags: [...], calls: [...]}}
//	deptrac:    {...}   # any other key is handed to the extension of that name
//
// Strings starting with "@" in arguments and calls are service references;
// "@@" escapes a literal "@". Imports are resolved relative to the importing
// file and may name built-in resources served by a ProviderRegistry.
package loader
