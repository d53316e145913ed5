// Package config loads the leapopt CLI configuration from leapopt.yaml,
// LEAPOPT_ environment variables and command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/leapopt/internal/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`

	DataDir   string `koanf:"data_dir"`
	StatePath string `koanf:"state_path"`
	Verbose   bool   `koanf:"verbose"`
	Output    string `koanf:"output"`
	// History records compile and solve runs in the state database.
	History bool `koanf:"history"`

	Solver  SolverConfig              `koanf:"solver"`
	Binding BindingConfig             `koanf:"binding"`
	Lint    LintConfig                `koanf:"lint"`
	Server  ServerConfig              `koanf:"server"`
	Sources map[string]adapter.Config `koanf:"sources"`
}

// SolverConfig holds solve defaults.
type SolverConfig struct {
	Backend   string        `koanf:"backend"`
	TimeLimit time.Duration `koanf:"time_limit"`
	MaxNodes  int           `koanf:"max_nodes"`
	Verbose   bool          `koanf:"verbose"`
}

// BindingConfig controls data binding.
type BindingConfig struct {
	// Strict turns unresolved sets and parameters into errors.
	Strict bool `koanf:"strict"`
}

// LintConfig holds linter settings.
type LintConfig struct {
	Disabled []string                  `koanf:"disabled"`
	Severity map[string]string         `koanf:"severity"`
	Rules    map[string]map[string]any `koanf:"rules"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Default configuration values.
const (
	DefaultStateFile = ".leapopt/history.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultAddr      = "127.0.0.1:8420"
)

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		StatePath: DefaultStateFile,
		Output:    DefaultOutput,
		History:   true,
		Server:    ServerConfig{Addr: DefaultAddr},
	}
}
