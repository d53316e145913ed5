package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapopt/internal/adapter"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leapopt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.BoolP("verbose", "v", false, "")
	fs.StringP("output", "o", "", "")
	fs.String("state", "", "")
	fs.Bool("no-history", false, "")
	fs.String("backend", "", "")
	fs.Duration("time-limit", 0, "")
	fs.Bool("nonzero", false, "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(ResetConfig)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.True(t, cfg.History)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.True(t, filepath.IsAbs(cfg.StatePath))
	assert.True(t, strings.HasSuffix(cfg.StatePath, filepath.Join(".leapopt", "history.db")), cfg.StatePath)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	t.Cleanup(ResetConfig)
	t.Setenv("PLAN_DB_PASSWORD", "s3cret")

	path := writeConfig(t, dir, `
output: markdown
state_path: state/history.db
data_dir: data
history: false
solver:
  backend: simplex
  time_limit: 30s
  max_nodes: 500
binding:
  strict: true
lint:
  disabled: [CX03]
  severity:
    VR01: error
  rules:
    CX01:
      max_total: 80
sources:
  plants:
    type: sqlite
    path: plants.db
    query: SELECT * FROM plants
  demand:
    type: postgres
    host: db.internal
    user: planner
    password: ${PLAN_DB_PASSWORD}
    query: SELECT * FROM demand
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, "markdown", cfg.Output)
	assert.False(t, cfg.History)
	assert.Equal(t, filepath.Join(dir, "state", "history.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, "simplex", cfg.Solver.Backend)
	assert.Equal(t, 30*time.Second, cfg.Solver.TimeLimit)
	assert.Equal(t, 500, cfg.Solver.MaxNodes)
	assert.True(t, cfg.Binding.Strict)

	require.Contains(t, cfg.Sources, "plants")
	assert.Equal(t, filepath.Join(dir, "plants.db"), cfg.Sources["plants"].Path)
	assert.Equal(t, "s3cret", cfg.Sources["demand"].Password)
	assert.Equal(t, "db.internal", cfg.Sources["demand"].Host)

	lc, err := cfg.LintConfig()
	require.NoError(t, err)
	assert.True(t, lc.IsDisabled("CX03"))
	assert.Equal(t, lint.SeverityError, lc.GetSeverity("VR01", lint.SeverityWarning))
	assert.Equal(t, 80, lint.GetIntOption(lc.GetRuleOptions("CX01"), "max_total", 50))
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(ResetConfig)
	writeConfig(t, dir, "output: markdown\nsolver:\n  backend: simplex\n  time_limit: 10s\n")

	t.Setenv("LEAPOPT_OUTPUT", "json")
	t.Setenv("LEAPOPT_SOLVER__TIME_LIMIT", "20s")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--time-limit", "5s", "--no-history", "--nonzero", "--state", "custom.db"}))

	cfg, err := LoadConfig("", fs)
	require.NoError(t, err)

	assert.Equal(t, "leapopt.yaml", GetConfigFileUsed())
	assert.Equal(t, "json", cfg.Output, "env overrides file")
	assert.Equal(t, 5*time.Second, cfg.Solver.TimeLimit, "flag overrides env")
	assert.Equal(t, "simplex", cfg.Solver.Backend)
	assert.False(t, cfg.History)
	assert.Equal(t, filepath.Join(dir, "custom.db"), cfg.StatePath)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad output", "output: yaml", "invalid output mode"},
		{"negative time limit", "solver:\n  time_limit: -1s", "must not be negative"},
		{"unknown backend", "solver:\n  backend: cplex", "cplex"},
		{"unknown source type", "sources:\n  s:\n    type: oracle", "unknown source type \"oracle\""},
		{"missing source type", "sources:\n  s:\n    path: x.db", "sources.s: type is required"},
		{"bad severity", "lint:\n  severity:\n    VR01: loud", "lint.severity.VR01"},
		{"bad yaml", "output: [", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			t.Cleanup(ResetConfig)
			path := writeConfig(t, dir, tt.content)

			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Nil(t, GetCurrentConfig())
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEAPOPT_TEST_HOST", "db.example.com")

	assert.Equal(t, "db.example.com:5432", expandEnvVars("${LEAPOPT_TEST_HOST}:5432"))
	assert.Equal(t, "${LEAPOPT_TEST_UNSET}", expandEnvVars("${LEAPOPT_TEST_UNSET}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))

	src := adapter.Config{User: "${LEAPOPT_TEST_HOST}"}
	expandSourceEnvVars(&src)
	assert.Equal(t, "db.example.com", src.User)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}
