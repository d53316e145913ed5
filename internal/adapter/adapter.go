// Package adapter loads model data from external sources: data files read
// through DuckDB, SQL queries against PostgreSQL or SQLite, and YAML/JSON
// data documents. Every source ends up as a *table.Table or a plain value
// ready for binding.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/leapopt/pkg/table"
)

// Config holds the configuration of one data source.
type Config struct {
	// Type specifies the adapter (e.g., "duckdb", "postgres", "sqlite")
	Type string `koanf:"type" json:"type"`

	// Path is the file path for file-based sources.
	// Use ":memory:" for in-memory databases
	Path string `koanf:"path" json:"path,omitempty"`

	// Host is the hostname for network-based databases
	Host string `koanf:"host" json:"host,omitempty"`

	// Port is the port number for network-based databases
	Port int `koanf:"port" json:"port,omitempty"`

	// Database is the database name
	Database string `koanf:"database" json:"database,omitempty"`

	// User for authentication
	User string `koanf:"user" json:"user,omitempty"`

	// Password for authentication
	Password string `koanf:"password" json:"-"`

	// Query selects the rows of the table
	Query string `koanf:"query" json:"query,omitempty"`

	// Options contains additional driver-specific options
	Options map[string]string `koanf:"options" json:"options,omitempty"`
}

// Adapter reads tables from one kind of source.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Query runs a statement and returns its rows as a table.
	Query(ctx context.Context, name, query string) (*table.Table, error)

	// DialectName returns the SQL dialect name of the adapter.
	DialectName() string
}

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed it in concrete adapters to get Close and Query.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Query runs query and collects the result set into a table named name.
func (b *BaseSQLAdapter) Query(ctx context.Context, name, query string) (*table.Table, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tbl, err := scanTable(name, rows)
	if err != nil {
		return nil, err
	}
	if b.Logger != nil {
		b.Logger.Debug("query loaded",
			slog.String("table", name),
			slog.Int("rows", tbl.Len()),
			slog.Int("columns", len(tbl.Columns())))
	}
	return tbl, nil
}

func scanTable(name string, rows *sql.Rows) (*table.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	// duplicate or empty column names (e.g. SELECT 1, 1) get positional names
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c == "" || seen[c] {
			columns[i] = "column" + strconv.Itoa(i)
		}
		seen[columns[i]] = true
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table.New(name, columns, data)
}
