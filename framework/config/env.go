package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment carries the process-level settings read from .env files and
// the environment. CLI flags take precedence over these.
type Environment struct {
	LogLevel    string // debug | info | warn | error
	LogFormat   string // text | json
	LogFile     string
	ConfigFile  string
	CacheFile   string
	InspectAddr string
	NoCache     bool
}

// LoadEnvironment reads .env (if present) and populates an Environment.
// Call once at bootstrap: env := config.LoadEnvironment()
func LoadEnvironment(envFiles ...string) Environment {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env is optional
	_ = godotenv.Load(files...)

	return Environment{
		LogLevel:    env("DEPTRAC_LOG_LEVEL", "warn"),
		LogFormat:   env("DEPTRAC_LOG_FORMAT", "text"),
		LogFile:     env("DEPTRAC_LOG_FILE", ""),
		ConfigFile:  env("DEPTRAC_CONFIG_FILE", ""),
		CacheFile:   env("DEPTRAC_CACHE_FILE", ""),
		InspectAddr: env("DEPTRAC_INSPECT_ADDR", "127.0.0.1:8642"),
		NoCache:     envBool("DEPTRAC_NO_CACHE", false),
	}
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
