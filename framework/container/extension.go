package container

// Extension owns a named configuration section. Configuration files hand it
// raw sections through LoadFromExtension; at compile time the container calls
// Load once with every section in load order.
type Extension interface {
	Alias() string
	Load(configs []map[string]any, c *Container) error
}

// CompilerPass mutates the container after extensions are loaded and before
// it is frozen.
type CompilerPass interface {
	Process(c *Container) error
}

// PassFunc adapts a plain function to CompilerPass.
//
//	c.AddCompilerPass(container.PassFunc(func(c *container.Container) error {
//	    return c.SetParameter("compiled_at", time.Now().Unix())
//	}))
type PassFunc func(c *Container) error

func (f PassFunc) Process(c *Container) error { return f(c) }
