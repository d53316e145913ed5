// Package testutil provides shared test helpers: a logger writing to the
// test log and fixtures for tables and model files.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapopt/pkg/table"
)

// NewTestLogger returns a debug-level logger that writes to t.Log, so
// output only shows for failing tests or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// MustTable builds a table or fails the test.
func MustTable(t testing.TB, name string, columns []string, rows ...[]any) *table.Table {
	t.Helper()
	tbl, err := table.New(name, columns, rows)
	if err != nil {
		t.Fatalf("building table %s: %v", name, err)
	}
	return tbl
}

// WriteFile writes content under dir, creating parent directories, and
// returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
