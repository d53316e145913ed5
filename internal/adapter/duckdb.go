package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/table"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func(logger *slog.Logger) Adapter { return NewDuckDB(logger) })
}

// readers maps data file extensions to the DuckDB table function that
// reads them.
var readers = map[string]string{
	".csv":     "read_csv_auto",
	".tsv":     "read_csv_auto",
	".parquet": "read_parquet",
	".json":    "read_json_auto",
	".ndjson":  "read_json_auto",
	".jsonl":   "read_json_auto",
}

// DuckDB reads data files and runs queries with an embedded DuckDB.
type DuckDB struct {
	BaseSQLAdapter
}

// NewDuckDB creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func NewDuckDB(logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDB{BaseSQLAdapter: BaseSQLAdapter{Logger: logger}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *DuckDB) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" or an empty path for an in-memory database.
func (a *DuckDB) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// CanRead reports whether path has an extension DuckDB reads.
func CanRead(path string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ReadFile loads a CSV, Parquet or JSON file as a table named name.
func (a *DuckDB) ReadFile(ctx context.Context, name, path string) (*table.Table, error) {
	fn, ok := readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported data file %s", path)
	}

	// Get absolute path for the file
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	a.Logger.Debug("reading data file", slog.String("path", absPath), slog.String("reader", fn))
	query := fmt.Sprintf("SELECT * FROM %s('%s')", fn, strings.ReplaceAll(absPath, "'", "''"))
	tbl, err := a.Query(ctx, name, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return tbl, nil
}

// Ensure DuckDB implements Adapter interface
var _ Adapter = (*DuckDB)(nil)
