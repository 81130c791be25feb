package providers_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/providers"
)

// newDeptracContainer mirrors the assembler's core wiring without any files.
func newDeptracContainer(t *testing.T) *container.Container {
	t.Helper()
	c := container.New()
	c.AddCompilerPass(providers.AddConsoleCommandPass{})
	c.AddCompilerPass(providers.RegisterListenersPass{})
	c.RegisterExtension(providers.Extension{})
	require.NoError(t, providers.Builtins().Load(c, providers.ServicesResource))
	return c
}

func TestExtension_PublishesDefaults(t *testing.T) {
	c := newDeptracContainer(t)
	require.NoError(t, c.Compile(false))

	params := c.Parameters()
	assert.Equal(t, []string{}, params["paths"])
	assert.Equal(t, []string{}, params["exclude_files"])
	assert.Equal(t, []map[string]any{}, params["layers"])
	assert.Equal(t, map[string][]string{}, params["ruleset"])
	assert.Equal(t, map[string][]string{}, params["skip_violations"])
	assert.Equal(t, map[string]any{"types": []string{"class", "function"}}, params["analyser"])
	assert.Equal(t, true, params["ignore_uncovered_internal_classes"])
	assert.NotContains(t, params, "cache_file")
}

func TestExtension_MergesSectionsInOrder(t *testing.T) {
	c := newDeptracContainer(t)
	require.NoError(t, c.LoadFromExtension("deptrac", map[string]any{"paths": []any{"src"}}))
	require.NoError(t, c.LoadFromExtension("deptrac", map[string]any{
		"ignore_uncovered_internal_classes": false,
		"cache_file":                        "ignored.cache",
	}))
	require.NoError(t, c.Compile(false))

	paths, err := container.Parameter[[]string](c, "paths")
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, paths)

	ignore, err := container.Parameter[bool](c, "ignore_uncovered_internal_classes")
	require.NoError(t, err)
	assert.False(t, ignore)
	assert.False(t, c.HasParameter("cache_file"))
}

func TestExtension_InvalidSectionFailsCompile(t *testing.T) {
	c := newDeptracContainer(t)
	require.NoError(t, c.LoadFromExtension("deptrac", map[string]any{"unknown": true}))

	err := c.Compile(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Unrecognized option "unknown" under "deptrac"`)
	assert.False(t, c.IsCompiled())
}

func TestCoreServices_Compile(t *testing.T) {
	c := newDeptracContainer(t)
	require.NoError(t, c.Compile(false))

	for _, id := range (providers.CoreServices{}).Provides() {
		assert.True(t, c.HasDefinition(id), id)
	}

	analyser, err := container.Resolve[*providers.Component](c, "analyser")
	require.NoError(t, err)
	assert.Equal(t, "DependencyLayersAnalyser", analyser.Class)
	require.Len(t, analyser.Arguments, 5)
	assert.Equal(t, []string{}, analyser.Arguments[3], "%paths% resolves to the published parameter")

	_, err = container.Resolve[*providers.MemoryCache](c, "ast_cache")
	assert.NoError(t, err, "without the cache resource the AST cache stays in memory")
}

func TestAddConsoleCommandPass(t *testing.T) {
	c := newDeptracContainer(t)
	require.NoError(t, c.Compile(false))

	ids, err := container.Parameter[[]string](c, "console.command.ids")
	require.NoError(t, err)
	assert.Contains(t, ids, "analyse_command")
	assert.Contains(t, ids, "init_command")

	loader, err := container.Resolve[*providers.CommandLoader](c, "console.command_loader")
	require.NoError(t, err)
	assert.Equal(t, []string{"analyse", "debug:layer", "debug:token", "debug:unassigned", "debug:unused", "init"}, loader.Names())
	assert.True(t, loader.Has("analyse"))

	cmd, err := loader.Get("analyse")
	require.NoError(t, err)
	assert.Equal(t, "AnalyseCommand", cmd.(*providers.Component).Class)

	_, err = loader.Get("missing")
	assert.Error(t, err)
}

func TestAddConsoleCommandPass_RejectsDuplicateNames(t *testing.T) {
	c := newDeptracContainer(t)
	c.Register("other_analyse", "AnalyseCommand").AddTag(providers.ConsoleCommandTag, map[string]any{"command": "analyse"})

	err := c.Compile(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `command "analyse" is provided by both`)
}

func TestAddConsoleCommandPass_RequiresCommandAttribute(t *testing.T) {
	c := newDeptracContainer(t)
	c.Register("nameless", "AnalyseCommand").AddTag(providers.ConsoleCommandTag, nil)

	err := c.Compile(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `needs a "command" attribute`)
}

func TestRegisterListenersPass_OrdersByPriority(t *testing.T) {
	c := newDeptracContainer(t)
	c.Register("late_subscriber", "UncoveredDependentSubscriber").
		AddTag(providers.EventSubscriberTag, map[string]any{"event": "ProcessEvent", "priority": int64(-5)})
	require.NoError(t, c.Compile(false))

	dispatcher, err := container.Resolve[*providers.EventDispatcher](c, "event_dispatcher")
	require.NoError(t, err)

	var got []string
	for _, l := range dispatcher.Listeners("ProcessEvent") {
		got = append(got, l.ServiceID)
	}
	assert.Equal(t, []string{"skip_violations_subscriber", "allow_dependency_subscriber", "late_subscriber"}, got)
	assert.Equal(t, []string{"PostProcessEvent", "ProcessEvent"}, dispatcher.Events())
}

func TestRegisterListenersPass_NoDispatcherIsNoop(t *testing.T) {
	c := container.New()
	c.Register("sub", "Subscriber").AddTag(providers.EventSubscriberTag, map[string]any{"event": "E"})

	assert.NoError(t, providers.RegisterListenersPass{}.Process(c))
}

func TestRegisterListenersPass_RejectsBadPriority(t *testing.T) {
	c := newDeptracContainer(t)
	c.Register("bad", "Subscriber").AddTag(providers.EventSubscriberTag, map[string]any{"event": "E", "priority": "high"})

	err := c.Compile(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")
}

func TestCacheServices_UsesCacheFileParameter(t *testing.T) {
	c := newDeptracContainer(t)
	path := filepath.Join(t.TempDir(), ".deptrac.cache")
	require.NoError(t, c.SetParameter("cache_file", path))
	require.NoError(t, providers.Builtins().Load(c, providers.CacheResource))
	require.NoError(t, c.Compile(false))

	cache, err := container.Resolve[*providers.FileCache](c, "ast_cache")
	require.NoError(t, err)
	assert.Equal(t, path, cache.Path)
	assert.False(t, cache.Exists())

	parser, err := container.Resolve[*providers.Component](c, "ast_parser")
	require.NoError(t, err)
	assert.Same(t, cache, parser.Arguments[0], "ast_cache is shared")
}

func TestCacheServices_WithoutParameterFailsCompile(t *testing.T) {
	c := newDeptracContainer(t)
	require.NoError(t, providers.Builtins().Load(c, providers.CacheResource))

	assert.ErrorIs(t, c.Compile(false), container.ErrParameterNotFound)
}

func TestBuiltins_Names(t *testing.T) {
	assert.Equal(t, []string{"cache", "services"}, providers.Builtins().Names())
}
