package config_test

import (
	"os"
	"testing"

	"github.com/km-arc/go-deptrac/framework/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "") // registers the restore
	os.Unsetenv(key)
}

var envKeys = []string{
	"DEPTRAC_LOG_LEVEL",
	"DEPTRAC_LOG_FORMAT",
	"DEPTRAC_LOG_FILE",
	"DEPTRAC_CONFIG_FILE",
	"DEPTRAC_CACHE_FILE",
	"DEPTRAC_INSPECT_ADDR",
	"DEPTRAC_NO_CACHE",
}

// ── LoadEnvironment ──────────────────────────────────────────────────────────

func TestLoadEnvironment_Defaults(t *testing.T) {
	for _, k := range envKeys {
		unsetEnv(t, k)
	}
	env := config.LoadEnvironment("testdata/empty.env")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"LogLevel", env.LogLevel, "warn"},
		{"LogFormat", env.LogFormat, "text"},
		{"LogFile", env.LogFile, ""},
		{"ConfigFile", env.ConfigFile, ""},
		{"CacheFile", env.CacheFile, ""},
		{"InspectAddr", env.InspectAddr, "127.0.0.1:8642"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
	if env.NoCache {
		t.Error("NoCache should default to false")
	}
}

func TestLoadEnvironment_DotEnvFile(t *testing.T) {
	for _, k := range envKeys {
		unsetEnv(t, k)
	}
	env := config.LoadEnvironment("testdata/deptrac.env")

	if env.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q want %q", env.LogLevel, "debug")
	}
	if env.ConfigFile != "deptrac.yaml" {
		t.Errorf("ConfigFile: got %q want %q", env.ConfigFile, "deptrac.yaml")
	}
	if !env.NoCache {
		t.Error("NoCache: expected true from .env")
	}
}

func TestLoadEnvironment_ProcessEnvWinsOverDotEnv(t *testing.T) {
	for _, k := range envKeys {
		unsetEnv(t, k)
	}
	t.Setenv("DEPTRAC_LOG_LEVEL", "error")

	env := config.LoadEnvironment("testdata/deptrac.env")
	if env.LogLevel != "error" {
		t.Errorf("LogLevel: got %q want %q", env.LogLevel, "error")
	}
}

func TestLoadEnvironment_InvalidBoolFallsBack(t *testing.T) {
	for _, k := range envKeys {
		unsetEnv(t, k)
	}
	t.Setenv("DEPTRAC_NO_CACHE", "maybe")

	if config.LoadEnvironment("testdata/empty.env").NoCache {
		t.Error("unparseable bool should fall back to false")
	}
}

func TestLoadEnvironment_MissingFileIsNotFatal(t *testing.T) {
	for _, k := range envKeys {
		unsetEnv(t, k)
	}
	env := config.LoadEnvironment("testdata/does-not-exist.env")
	if env.LogFormat != "text" {
		t.Errorf("LogFormat: got %q want %q", env.LogFormat, "text")
	}
}
