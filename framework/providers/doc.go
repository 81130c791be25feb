// Package providers holds the built-in pieces of a deptrac container: the
// "deptrac" configuration extension, the core and cache service definitions
// served by Builtins, and the compiler passes wiring console commands and
// event subscribers.
//
//	c := container.New()
//	c.AddCompilerPass(providers.AddConsoleCommandPass{})
//	c.AddCompilerPass(providers.RegisterListenersPass{})
//	c.RegisterExtension(providers.Extension{})
//	_ = providers.Builtins().Load(c, providers.ServicesResource)
package providers
