// Package container provides the service registry that deptrac's bootstrap
// assembles: parameters, service definitions, configuration extensions and
// compiler passes, frozen by Compile into a read-only object graph.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register extensions and passes: c.RegisterExtension(ext), c.AddCompilerPass(p)
//  3. Load definitions: providers.Load(c, "services"), file loaders, ...
//  4. Compile: c.Compile(true): extensions load, passes run, placeholders expand
//  5. Query: c.GetParameter("paths"), c.GetDefinition("ast_parser"), c.Make("ast_cache")
//
// # Parameters
//
//	c.SetParameter("projectDirectory", "/proj")
//	c.SetParameter("cache_dir", "%projectDirectory%/var")   // "/proj/var" after Compile
//	c.SetParameter("token", "%env(DEPTRAC_TOKEN)%")          // read at Compile(true)
//	c.SetParameter("literal", "100%%")                       // "100%"
//
// A string that is exactly one placeholder keeps the referenced value's type,
// so "%paths%" can stand for a []string.
//
// # Definitions
//
// Go cannot instantiate a type from its name, so a definition's Class is a
// key into factories bound with BindClass (or the definition's own Factory):
//
//	c.Register("ast_cache", "AstFileReferenceFileCache").Arguments = []any{"%cache_file%"}
//	c.BindClass("AstFileReferenceFileCache", func(c *container.Container, d *container.Definition) (any, error) {
//	    args, err := c.ResolveArguments(d.Arguments)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &FileCache{Path: args[0].(string)}, nil
//	})
//
//	cache, err := container.Resolve[*FileCache](c, "ast_cache")
//
// References to other services are written container.Reference("id") in Go
// and "@id" in configuration files; Compile rejects dangling references.
//
// # Extensions
//
// An Extension owns a top-level configuration section. Loaders queue raw
// sections with LoadFromExtension; Compile hands them to Extension.Load in
// load order so later files override earlier ones.
//
// # Service Providers
//
// A ProviderRegistry maps built-in resource names to providers, standing in
// for configuration files shipped inside the tool:
//
//	builtins := container.NewProviderRegistry().
//	    Add("services", providers.CoreServices{}).
//	    Add("cache", providers.CacheServices{})
//	err := builtins.Load(c, "services")
package container
