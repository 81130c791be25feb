// Package app assembles the deptrac container.
//
//	a, err := app.NewAssembler(wd, app.WithLogger(logger))
//	if err != nil { ... }
//	c, err := a.WithConfig("deptrac.yaml").Build(app.NoCacheOverride(), false)
//
// Failures are typed: *CannotLoadConfigurationError names the stage
// (services, config or cache) and the file, *CacheFileError names a cache
// path that could not be created or removed.
package app
