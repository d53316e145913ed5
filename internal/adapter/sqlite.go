package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	Register("sqlite", func(logger *slog.Logger) Adapter { return NewSQLite(logger) })
}

// SQLite runs queries against a SQLite database file.
type SQLite struct {
	BaseSQLAdapter
}

// NewSQLite creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func NewSQLite(logger *slog.Logger) *SQLite {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLite{BaseSQLAdapter: BaseSQLAdapter{Logger: logger}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *SQLite) DialectName() string {
	return "sqlite"
}

// Connect opens the database at cfg.Path.
func (a *SQLite) Connect(ctx context.Context, cfg Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("sqlite source needs a path")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Ensure SQLite implements Adapter interface
var _ Adapter = (*SQLite)(nil)
