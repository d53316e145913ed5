package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", func(logger *slog.Logger) Adapter { return NewPostgres(logger) })
}

// Postgres runs queries against PostgreSQL.
type Postgres struct {
	BaseSQLAdapter
}

// NewPostgres creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func NewPostgres(logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{BaseSQLAdapter: BaseSQLAdapter{Logger: logger}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Postgres) DialectName() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Postgres) Connect(ctx context.Context, cfg Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// Ensure Postgres implements Adapter interface
var _ Adapter = (*Postgres)(nil)
