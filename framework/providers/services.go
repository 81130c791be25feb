package providers

import (
	"github.com/km-arc/go-deptrac/framework/container"
)

// Resource names served by Builtins.
const (
	ServicesResource = "services"
	CacheResource    = "cache"
)

// Tags collected by the compiler passes.
const (
	ConsoleCommandTag  = "console.command"
	EventSubscriberTag = "kernel.event_subscriber"
)

// Class names bound to factories in this package.
const (
	EventDispatcherClass = "EventDispatcher"
	CommandLoaderClass   = "ContainerCommandLoader"
	MemoryCacheClass     = "AstFileReferenceInMemoryCache"
	FileCacheClass       = "AstFileReferenceFileCache"
)

// Builtins returns the registry of built-in resources: "services" with the
// core definitions and "cache" with the file-backed AST cache.
func Builtins() *container.ProviderRegistry {
	return container.NewProviderRegistry().
		Add(ServicesResource, CoreServices{}).
		Add(CacheResource, CacheServices{})
}

// ── CoreServices ─────────────────────────────────────────────────────────────

// CoreServices registers the definitions every deptrac container has.
//
// Registered ids:
//   - event_dispatcher, console.command_loader (via AddConsoleCommandPass)
//   - ast_parser, ast_cache, type_resolver
//   - layer_resolver, dependency_resolver, analyser, formatter_provider
//   - *_command services tagged console.command
//   - *_subscriber services tagged kernel.event_subscriber
type CoreServices struct {
	container.BaseProvider
}

type commandSpec struct {
	id, class, name string
}

var coreCommands = []commandSpec{
	{"analyse_command", "AnalyseCommand", "analyse"},
	{"debug_layer_command", "DebugLayerCommand", "debug:layer"},
	{"debug_token_command", "DebugTokenCommand", "debug:token"},
	{"debug_unassigned_command", "DebugUnassignedCommand", "debug:unassigned"},
	{"debug_unused_command", "DebugUnusedCommand", "debug:unused"},
	{"init_command", "InitCommand", "init"},
}

type subscriberSpec struct {
	id, class, event string
	priority         int
	argument         string
}

var coreSubscribers = []subscriberSpec{
	{"skip_violations_subscriber", "SkipViolationsSubscriber", "ProcessEvent", 32, "%skip_violations%"},
	{"allow_dependency_subscriber", "AllowDependencySubscriber", "ProcessEvent", 16, "%ruleset%"},
	{"uncovered_dependent_subscriber", "UncoveredDependentSubscriber", "PostProcessEvent", 0, "%ignore_uncovered_internal_classes%"},
}

var componentClasses = []string{
	"NikicPhpParser",
	"TypeResolver",
	"LayerResolver",
	"DependencyResolver",
	"DependencyLayersAnalyser",
	"FormatterProvider",
}

// Register adds the core definitions and binds their factories.
func (CoreServices) Register(c *container.Container) error {
	c.BindClass(EventDispatcherClass, func(*container.Container, *container.Definition) (any, error) {
		return NewEventDispatcher(), nil
	})
	c.BindClass(CommandLoaderClass, commandLoaderFactory)
	c.BindClass(MemoryCacheClass, func(*container.Container, *container.Definition) (any, error) {
		return &MemoryCache{}, nil
	})
	for _, class := range componentClasses {
		c.BindClass(class, ComponentFactory)
	}

	c.Register("event_dispatcher", EventDispatcherClass).SetPublic(true)
	c.Register("ast_cache", MemoryCacheClass)
	c.Register("type_resolver", "TypeResolver")

	parser := c.Register("ast_parser", "NikicPhpParser")
	parser.Arguments = []any{container.Reference("ast_cache"), container.Reference("type_resolver")}

	layers := c.Register("layer_resolver", "LayerResolver")
	layers.Arguments = []any{"%layers%"}

	deps := c.Register("dependency_resolver", "DependencyResolver")
	deps.Arguments = []any{"%analyser%", container.Reference("type_resolver"), container.Reference("event_dispatcher")}

	analyser := c.Register("analyser", "DependencyLayersAnalyser")
	analyser.Arguments = []any{
		container.Reference("ast_parser"),
		container.Reference("dependency_resolver"),
		container.Reference("layer_resolver"),
		"%paths%",
		"%exclude_files%",
	}
	analyser.SetPublic(true)

	formatters := c.Register("formatter_provider", "FormatterProvider")
	formatters.Arguments = []any{"%formatters%"}

	for _, cmd := range coreCommands {
		c.BindClass(cmd.class, ComponentFactory)
		def := c.Register(cmd.id, cmd.class).AddTag(ConsoleCommandTag, map[string]any{"command": cmd.name})
		def.Arguments = []any{container.Reference("analyser"), container.Reference("formatter_provider")}
		def.SetPublic(true)
	}

	for _, sub := range coreSubscribers {
		c.BindClass(sub.class, ComponentFactory)
		def := c.Register(sub.id, sub.class).AddTag(EventSubscriberTag, map[string]any{
			"event":    sub.event,
			"priority": sub.priority,
		})
		def.Arguments = []any{sub.argument}
	}
	return nil
}

// Provides lists the ids Register defines.
func (CoreServices) Provides() []string {
	ids := []string{
		"event_dispatcher", "ast_cache", "type_resolver", "ast_parser",
		"layer_resolver", "dependency_resolver", "analyser", "formatter_provider",
	}
	for _, cmd := range coreCommands {
		ids = append(ids, cmd.id)
	}
	for _, sub := range coreSubscribers {
		ids = append(ids, sub.id)
	}
	return ids
}

// ── CacheServices ────────────────────────────────────────────────────────────

// CacheServices swaps the in-memory AST cache for one persisted at
// %cache_file%. It is only loaded when a cache file is in use.
type CacheServices struct {
	container.BaseProvider
}

// Register redefines ast_cache.
func (CacheServices) Register(c *container.Container) error {
	c.BindClass(FileCacheClass, fileCacheFactory)
	c.Register("ast_cache", FileCacheClass).Arguments = []any{"%cache_file%"}
	return nil
}

// Provides lists the ids Register defines.
func (CacheServices) Provides() []string { return []string{"ast_cache"} }
