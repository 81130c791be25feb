package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/loader"
)

// recordingExtension accepts any section and keeps nothing at compile time.
type recordingExtension struct{ alias string }

func (e recordingExtension) Alias() string { return e.alias }

func (recordingExtension) Load([]map[string]any, *container.Container) error { return nil }

func newContainer() *container.Container {
	c := container.New()
	c.RegisterExtension(recordingExtension{alias: "deptrac"})
	return c
}

func testdata(t *testing.T, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return p
}

func newLoader(providers *container.ProviderRegistry) *loader.DelegatingLoader {
	return loader.New(loader.NewFileLocator(), providers, nil)
}

func TestYAML_ServicesParametersAndSections(t *testing.T) {
	c := newContainer()
	file := testdata(t, "services.yaml")

	require.NoError(t, newLoader(nil).Load(c, file))

	v, err := c.GetParameter("parser.class")
	require.NoError(t, err)
	assert.Equal(t, "CustomPhpParser", v)

	def, err := c.GetDefinition("ast_parser")
	require.NoError(t, err)
	assert.Equal(t, "%parser.class%", def.Class)
	assert.Equal(t, []any{container.Reference("event_dispatcher"), "%greeting%", "@literal"}, def.Arguments)
	assert.True(t, def.Public)
	assert.True(t, def.HasTag("ast.parser"))
	assert.Equal(t, []map[string]any{{"command": "analyse"}}, def.TagAttributes("console.command"))
	require.Len(t, def.Calls, 2)
	assert.Equal(t, "setLogger", def.Calls[0].Method)
	assert.Equal(t, []any{container.Reference("logger")}, def.Calls[0].Arguments)
	assert.Equal(t, container.MethodCall{Method: "setVerbose", Arguments: []any{true}}, def.Calls[1])

	dispatcher, err := c.GetDefinition("event_dispatcher")
	require.NoError(t, err)
	assert.Equal(t, "event_dispatcher", dispatcher.Class, "a null definition uses the id as class")

	logger, err := c.GetDefinition("logger")
	require.NoError(t, err)
	assert.False(t, logger.Shared)

	assert.Equal(t, map[string]string{"parser": "ast_parser", "dispatcher": "event_dispatcher"}, c.Aliases())
	assert.Equal(t, []map[string]any{{"paths": []any{"src"}}}, c.GetExtensionConfig("deptrac"))
	assert.Equal(t, []string{file}, c.Resources())

	require.NoError(t, c.Compile(false))
	def, err = c.GetDefinition("ast_parser")
	require.NoError(t, err)
	assert.Equal(t, "CustomPhpParser", def.Class)
	assert.Equal(t, "hello", def.Arguments[1])
}

func TestTOML_ImportsYAMLFirst(t *testing.T) {
	c := newContainer()

	require.NoError(t, newLoader(nil).Load(c, testdata(t, "main.toml")))

	level, err := c.GetParameter("level")
	require.NoError(t, err)
	assert.Equal(t, "main", level, "the importing file overrides its imports")

	fromBase, err := c.GetParameter("from_base")
	require.NoError(t, err)
	assert.Equal(t, true, fromBase)

	retries, err := c.GetParameter("retries")
	require.NoError(t, err)
	assert.Equal(t, int64(3), retries)

	assert.Equal(t, []map[string]any{
		{"paths": []any{"lib"}},
		{"paths": []any{"src"}},
	}, c.GetExtensionConfig("deptrac"))
	assert.Equal(t, []string{testdata(t, "main.toml"), testdata(t, "base.yaml")}, c.Resources())
}

func TestHCL_Expressions(t *testing.T) {
	c := newContainer()
	file := testdata(t, "deptrac.hcl")
	dir := filepath.Dir(file)

	require.NoError(t, newLoader(nil).Load(c, file))

	params := c.Parameters()
	assert.Equal(t, "%env(HOME)%", params["home"])
	assert.Equal(t, dir+"/src", params["src_dir"])
	assert.Equal(t, "DEPTRAC", params["shouting"])
	assert.Equal(t, 3, params["retries"])
	assert.Equal(t, 0.5, params["ratio"])

	def, err := c.GetDefinition("ast_parser")
	require.NoError(t, err)
	assert.Equal(t, "CustomPhpParser", def.Class)
	assert.Equal(t, []any{container.Reference("event_dispatcher")}, def.Arguments)
	assert.True(t, c.HasDefinition("event_dispatcher"))

	assert.Equal(t, []map[string]any{{
		"paths":      []any{dir + "/src"},
		"cache_file": nil,
	}}, c.GetExtensionConfig("deptrac"))
}

func TestHCL_EnvResolvedAtCompile(t *testing.T) {
	t.Setenv("HOME", "/home/deptrac")
	c := newContainer()
	require.NoError(t, newLoader(nil).Load(c, testdata(t, "deptrac.hcl")))
	require.NoError(t, c.Compile(true))

	home, err := c.GetParameter("home")
	require.NoError(t, err)
	assert.Equal(t, "/home/deptrac", home)
}

func TestImportCycle(t *testing.T) {
	err := newLoader(nil).Load(newContainer(), testdata(t, "cycle_a.yaml"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrImportCycle))
	assert.Contains(t, err.Error(), "cycle_a.yaml -> cycle_b.yaml -> cycle_a.yaml")
}

func TestOptionalImport_MissingIsSkipped(t *testing.T) {
	c := newContainer()

	require.NoError(t, newLoader(nil).Load(c, testdata(t, "optional_import.yaml")))
	assert.True(t, c.HasParameter("loaded"))
}

func TestBuiltinImport_GoesThroughProviders(t *testing.T) {
	providers := container.NewProviderRegistry().Add("services", container.ProviderFunc(func(c *container.Container) error {
		c.Register("ast_parser", "NikicPhpParser")
		return nil
	}))
	c := newContainer()

	require.NoError(t, newLoader(providers).Load(c, testdata(t, "builtin_import.yaml")))
	assert.True(t, c.HasDefinition("ast_parser"))
}

func TestDelegatingLoader_Providers(t *testing.T) {
	providers := container.NewProviderRegistry().Add("cache", container.ProviderFunc(func(c *container.Container) error {
		return c.SetParameter("cache.loaded", true)
	}))
	l := newLoader(providers)
	c := newContainer()

	assert.True(t, l.Supports("cache"))
	require.NoError(t, l.Load(c, "cache"))
	assert.True(t, c.HasParameter("cache.loaded"))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"unknown extension section", "unknown_section.yaml", `there is no extension able to load the configuration for "framework"`},
		{"malformed yaml", "malformed.yaml", "unable to parse yaml file"},
		{"unsupported definition key", "bad_service.yaml", `unsupported key "klass"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newLoader(nil).Load(newContainer(), testdata(t, tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnknownExtensionIsExtensionNotFound(t *testing.T) {
	err := newLoader(nil).Load(newContainer(), testdata(t, "unknown_section.yaml"))
	assert.True(t, errors.Is(err, container.ErrExtensionNotFound))
}

func TestNoLoaderForExtension(t *testing.T) {
	l := newLoader(nil)

	assert.False(t, l.Supports("deptrac.xml"))
	err := l.Load(newContainer(), "deptrac.xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrNoLoader))
}

func TestMissingFile(t *testing.T) {
	err := newLoader(nil).Load(newContainer(), filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileLocator(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "config")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "layers.yaml"), nil, 0o644))

	locator := loader.NewFileLocator(sub)

	got, err := locator.Locate("layers.yaml", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sub, "layers.yaml"), got, "falls back to search paths")

	_, err = locator.Locate("config", dir)
	assert.Error(t, err, "directories are not files")

	_, err = locator.Locate("", dir)
	assert.Error(t, err)
}

func TestEmptyFileIsAnEmptyDocument(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	c := newContainer()

	require.NoError(t, newLoader(nil).Load(c, file))
	assert.Equal(t, []string{file}, c.Resources())
}
