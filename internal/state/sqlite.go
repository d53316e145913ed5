package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const recordColumns = "id, created_at, name, source, class, valid, errors, program, " +
	"variable_count, complexity, status, objective, elapsed_ms"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// NewWithDB wraps an already opened database. The schema is not migrated.
func NewWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Open opens a connection to the SQLite database, creating its directory
// when needed. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if path != ":memory:" {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.Exec(pragma); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to configure sqlite database: %w", err)
			}
		}
	}

	s.db = db
	s.path = path
	return nil
}

// Open opens the store at path and runs migrations.
func Open(path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// Save inserts r, assigning its ID and timestamp when unset. Saving a
// record with an existing ID replaces it.
func (s *SQLiteStore) Save(ctx context.Context, r *Record) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if r.ID == "" {
		r.ID = generateID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	var objective sql.NullFloat64
	if r.Objective != nil {
		objective = sql.NullFloat64{Float64: *r.Objective, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO history (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), r.Name, r.Source, r.Class, r.Valid, string(errJSON), r.Program,
		r.VariableCount, r.Complexity, r.Status, objective, r.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM history WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// List returns the most recent records first. A non-positive limit returns
// every record.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Record, error) {
	return s.list(ctx, "", limit)
}

// ListByClass returns the most recent records of one problem class.
func (s *SQLiteStore) ListByClass(ctx context.Context, class string, limit int) ([]*Record, error) {
	if class == "" {
		return nil, fmt.Errorf("class must not be empty")
	}
	return s.list(ctx, class, limit)
}

func (s *SQLiteStore) list(ctx context.Context, class string, limit int) ([]*Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + recordColumns + ` FROM history`
	args := []any{}
	if class != "" {
		query += ` WHERE class = ?`
		args = append(args, class)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Stats summarises the history.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	st := &Stats{ByClass: map[string]int{}, ByStatus: map[string]int{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(valid), 0), COALESCE(AVG(complexity), 0.0) FROM history`,
	).Scan(&st.Total, &st.Valid, &st.AverageComplexity)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	st.Invalid = st.Total - st.Valid

	if err := s.groupCount(ctx, "class", st.ByClass); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "status", st.ByStatus); err != nil {
		return nil, err
	}
	return st, nil
}

// groupCount counts records per non-empty value of column.
func (s *SQLiteStore) groupCount(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM history WHERE `+column+` != '' GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("failed to count by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to count by %s: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r         Record
		created   int64
		errJSON   string
		objective sql.NullFloat64
	)
	err := sc.Scan(&r.ID, &created, &r.Name, &r.Source, &r.Class, &r.Valid, &errJSON, &r.Program,
		&r.VariableCount, &r.Complexity, &r.Status, &objective, &r.ElapsedMS)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(errJSON), &r.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	if len(r.Errors) == 0 {
		r.Errors = nil
	}
	if objective.Valid {
		v := objective.Float64
		r.Objective = &v
	}
	return &r, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
