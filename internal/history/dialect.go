package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/retry"
	"github.com/loykin/s3smoke/internal/util"
)

// dialect hides the differences between the two backends.
type dialect interface {
	name() string
	defaultDSN() string
	placeholder(n int) string
	createTable(table string) string
	connect(ctx context.Context, dsn string) (*sql.DB, error)
}

func dialectFor(typ string) (dialect, error) {
	switch util.TrimAndLower(typ) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("history: unsupported type %q (valid: sqlite, postgres)", typ)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) name() string           { return "sqlite" }
func (sqliteDialect) defaultDSN() string     { return constants.DefaultHistorySQLiteDSN }
func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		bucket TEXT NOT NULL,
		object_key TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		failed_step INTEGER NOT NULL,
		error_kind TEXT NOT NULL,
		error TEXT NOT NULL
	)`, table)
}

func (sqliteDialect) connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	// SQLite allows only one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

type postgresDialect struct{}

func (postgresDialect) name() string             { return "postgres" }
func (postgresDialect) defaultDSN() string       { return "" }
func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		bucket TEXT NOT NULL,
		object_key TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		passed BOOLEAN NOT NULL,
		failed_step INTEGER NOT NULL,
		error_kind TEXT NOT NULL,
		error TEXT NOT NULL
	)`, table)
}

func (postgresDialect) connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	// the server may still be accepting its first connections
	_, err = retry.Do(ctx, retry.DefaultRetryConfig(), func(ctx context.Context, _ int) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}
