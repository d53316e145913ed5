package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leapopt/internal/adapter"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: LEAPOPT_SOLVER__BACKEND sets solver.backend.
const EnvPrefix = "LEAPOPT_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps command-line flags onto config keys. Flags not listed are
// command options, not configuration.
var flagKeys = map[string]string{
	"verbose":    "verbose",
	"output":     "output",
	"state":      "state_path",
	"data-dir":   "data_dir",
	"no-history": "history",
	"backend":    "solver.backend",
	"time-limit": "solver.time_limit",
	"max-nodes":  "solver.max_nodes",
	"strict":     "binding.strict",
	"addr":       "server.addr",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > leapopt.yaml > leapopt.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"leapopt.yaml", "leapopt.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Load defaults
	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"state_path":  def.StatePath,
		"output":      def.Output,
		"verbose":     false,
		"history":     def.History,
		"server.addr": def.Server.Addr,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: LEAPOPT_SOLVER__TIME_LIMIT -> solver.time_limit
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags explicitly set on the command line
	var flagPaths map[string]string
	if flags != nil {
		flagPaths = absFlagPaths(flags)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if f.Name == "no-history" {
				return key, f.Value.String() != "true"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Paths from the config file are relative to it; flag paths to the CWD.
	cfg.ProjectRoot = projectRoot(configFileUsed)
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, cfg.ProjectRoot)
	cfg.DataDir = resolvePathRelativeTo(cfg.DataDir, cfg.ProjectRoot)
	if p, ok := flagPaths["state"]; ok {
		cfg.StatePath = p
	}
	if p, ok := flagPaths["data-dir"]; ok {
		cfg.DataDir = p
	}
	for name, src := range cfg.Sources {
		expandSourceEnvVars(&src)
		src.Path = resolvePathRelativeTo(src.Path, cfg.ProjectRoot)
		cfg.Sources[name] = src
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func absFlagPaths(flags *pflag.FlagSet) map[string]string {
	paths := make(map[string]string)
	for _, name := range []string{"state", "data-dir"} {
		f := flags.Lookup(name)
		if f == nil || !f.Changed || f.Value.String() == "" {
			continue
		}
		if abs, err := filepath.Abs(f.Value.String()); err == nil {
			paths[name] = abs
		}
	}
	return paths
}

func projectRoot(configFile string) string {
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandSourceEnvVars expands environment variables in connection fields.
func expandSourceEnvVars(src *adapter.Config) {
	src.Path = expandEnvVars(src.Path)
	src.Host = expandEnvVars(src.Host)
	src.Database = expandEnvVars(src.Database)
	src.User = expandEnvVars(src.User)
	src.Password = expandEnvVars(src.Password)
}
