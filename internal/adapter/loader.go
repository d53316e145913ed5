package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/binding"
	"github.com/leapstack-labs/leapopt/pkg/table"
)

// FileLoader reads the files named by import statements. Data files go
// through an in-memory DuckDB, YAML record lists are decoded directly.
type FileLoader struct {
	Logger *slog.Logger
}

// NewFileLoader creates a loader. If logger is nil, a discard logger is used.
func NewFileLoader(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileLoader{Logger: logger}
}

// Load implements binding.Loader.
func (l *FileLoader) Load(ctx context.Context, path string) (*table.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadRecords(name, path)
	}
	if !CanRead(path) {
		return nil, fmt.Errorf("unsupported data file %s", path)
	}

	db := NewDuckDB(l.Logger)
	if err := db.Connect(ctx, Config{Type: "duckdb"}); err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return db.ReadFile(ctx, name, path)
}

var _ binding.Loader = (*FileLoader)(nil)

// LoadSources loads every configured source into a map of named tables.
func LoadSources(ctx context.Context, sources map[string]Config, logger *slog.Logger) (map[string]any, error) {
	tables := make(map[string]any, len(sources))
	for name, cfg := range sources {
		tbl, err := LoadSource(ctx, name, cfg, logger)
		if err != nil {
			return nil, err
		}
		tables[name] = tbl
	}
	return tables, nil
}
