// Package history journals smoke runs in SQLite or PostgreSQL so repeated
// runs against a stack can be compared.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/util"
)

// timeLayout keeps every fraction digit so stored TEXT timestamps sort
// chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one journal row.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Bucket     string
	ObjectKey  string
	StatusCode int
	Passed     bool
	FailedStep int
	ErrorKind  string
	Error      string
}

// Config selects the backend.
type Config struct {
	Type  string // sqlite (default) or postgres
	DSN   string
	Table string
}

// Recorder is what the harness needs from the journal.
type Recorder interface {
	Record(ctx context.Context, run Run) error
}

// Journal is a Recorder backed by database/sql.
type Journal struct {
	DB      *sql.DB
	dialect dialect
	table   string
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects and creates the table when missing.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	d, err := dialectFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	table := util.TrimWithDefault(cfg.Table, constants.DefaultHistoryTable)
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("history: invalid table name %q", table)
	}
	dsn := util.TrimWithDefault(cfg.DSN, d.defaultDSN())
	if dsn == "" {
		return nil, errors.New("history: dsn is required for " + d.name())
	}

	db, err := d.connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	j := &Journal{DB: db, dialect: d, table: table}
	if err := j.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	common.GetLogger().WithComponent("history").Debug("run journal opened", "type", d.name(), "table", table)
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.DB == nil {
		return nil
	}
	return j.DB.Close()
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	if _, err := j.DB.ExecContext(ctx, j.dialect.createTable(j.table)); err != nil {
		return fmt.Errorf("history: create table %s: %w", j.table, err)
	}
	return nil
}

// Record inserts run, assigning an id when it has none.
func (j *Journal) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	p := j.dialect.placeholder
	q := fmt.Sprintf(`INSERT INTO %s (id, started_at, finished_at, bucket, object_key, status_code, passed, failed_step, error_kind, error)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		j.table, p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10))
	_, err := j.DB.ExecContext(ctx, q,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Bucket,
		run.ObjectKey,
		run.StatusCode,
		run.Passed,
		run.FailedStep,
		run.ErrorKind,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	q := fmt.Sprintf(`SELECT id, started_at, finished_at, bucket, object_key, status_code, passed, failed_step, error_kind, error
		FROM %s ORDER BY started_at DESC LIMIT %s`, j.table, j.dialect.placeholder(1))
	rows, err := j.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Bucket, &r.ObjectKey, &r.StatusCode, &r.Passed, &r.FailedStep, &r.ErrorKind, &r.Error); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Recorder = (*Journal)(nil)
