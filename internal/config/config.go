// Package config resolves Glance's effective runtime configuration from
// the four sources named in the spec's external interfaces: CLI flags,
// a persisted LlmSettings/ConnectionProfile row, process environment,
// and built-in defaults — in that priority order, high to low. Loading
// the on-disk TOML config file itself is an external collaborator's
// responsibility (spec.md §1 Non-goals / out of scope); this package
// only ever sees already-parsed values from that file, passed in
// alongside the other three sources.
package config

import (
	"os"
	"strconv"
	"time"

	apperrors "github.com/jordigilh/glance/internal/errors"
)

// Config is Glance's fully-resolved runtime configuration.
type Config struct {
	Host           string
	Port           int
	Database       string
	User           string
	SSLMode        string
	ConnectionName string

	LLMProvider string
	LLMModel    string

	DBPoolSize int
	DBTimeout  time.Duration
	LLMTimeout time.Duration

	Headless   bool
	MockDB     bool
	Events     string
	ScriptPath string
	Output     string

	StatePath string
}

// Defaults returns Glance's built-in default configuration, the lowest
// rung of the priority chain.
func Defaults() Config {
	return Config{
		Port:       5432,
		SSLMode:    "disable",
		LLMProvider: "openai",
		DBPoolSize: 5,
		DBTimeout:  30 * time.Second,
		LLMTimeout: 120 * time.Second,
		Output:     "text",
	}
}

// FromEnv reads the environment variables spec.md §6 recognizes and
// returns the subset of Config they populate. Unset variables leave the
// corresponding field at its zero value so Merge can tell "unset" from
// "explicitly zero".
func FromEnv(lookup func(string) (string, bool)) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var c Config
	if v, ok := lookup("PGHOST"); ok {
		c.Host = v
	}
	if v, ok := lookup("PGPORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v, ok := lookup("PGDATABASE"); ok {
		c.Database = v
	}
	if v, ok := lookup("PGUSER"); ok {
		c.User = v
	}
	if v, ok := lookup("GLANCE_LLM_PROVIDER"); ok {
		c.LLMProvider = v
	}
	if v, ok := lookup("GLANCE_DB_POOL_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.DBPoolSize = n
		}
	}
	return c
}

// ProviderAPIKeyEnvVar returns the environment variable name holding the
// API key for provider, per spec.md §6. Ollama has no key; OLLAMA_URL is
// an endpoint override, not a secret, and is read directly by the
// provider constructor rather than through the secret resolution path.
func ProviderAPIKeyEnvVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// Merge applies the CLI > persisted > env > default priority chain
// field by field. Each layer only overrides a field when it carries a
// non-zero value, so a flag the user didn't pass falls through to the
// next layer instead of clobbering it with a zero value.
func Merge(cli, persisted, env, defaults Config) Config {
	out := defaults
	for _, layer := range []Config{env, persisted, cli} {
		out = overlay(out, layer)
	}
	return out
}

func overlay(base, override Config) Config {
	if override.Host != "" {
		base.Host = override.Host
	}
	if override.Port != 0 {
		base.Port = override.Port
	}
	if override.Database != "" {
		base.Database = override.Database
	}
	if override.User != "" {
		base.User = override.User
	}
	if override.SSLMode != "" {
		base.SSLMode = override.SSLMode
	}
	if override.ConnectionName != "" {
		base.ConnectionName = override.ConnectionName
	}
	if override.LLMProvider != "" {
		base.LLMProvider = override.LLMProvider
	}
	if override.LLMModel != "" {
		base.LLMModel = override.LLMModel
	}
	if override.DBPoolSize != 0 {
		base.DBPoolSize = override.DBPoolSize
	}
	if override.DBTimeout != 0 {
		base.DBTimeout = override.DBTimeout
	}
	if override.LLMTimeout != 0 {
		base.LLMTimeout = override.LLMTimeout
	}
	if override.Headless {
		base.Headless = true
	}
	if override.MockDB {
		base.MockDB = true
	}
	if override.Events != "" {
		base.Events = override.Events
	}
	if override.ScriptPath != "" {
		base.ScriptPath = override.ScriptPath
	}
	if override.Output != "" {
		base.Output = override.Output
	}
	if override.StatePath != "" {
		base.StatePath = override.StatePath
	}
	return base
}

// Validate checks the fully-merged configuration for the combinations
// spec.md classifies as a Config error (exit code 2 in headless mode).
func Validate(c Config) error {
	switch c.Output {
	case "text", "json", "frames":
	default:
		return apperrors.ConfigError("output", "must be one of text, json, frames")
	}
	if c.Port < 0 || c.Port > 65535 {
		return apperrors.ConfigError("port", "must be between 0 and 65535")
	}
	if !c.MockDB && c.Database == "" && c.ConnectionName == "" {
		return apperrors.ConfigError("database", "either --database, --connection, or --mock-db is required")
	}
	return nil
}
