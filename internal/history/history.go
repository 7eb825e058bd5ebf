// Package history persists forecast runs to Postgres so farms can look back
// at what was due on a given day.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rotisserie/eris"

	"goatfarm-breeding-forecast/internal/breeding"
)

// DefaultSchema holds the history tables when none is configured.
const DefaultSchema = "goatfarm_forecast"

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Recorder writes forecast runs into one Postgres schema.
type Recorder struct {
	db     *sql.DB
	schema string
}

// Run is one stored forecast run.
type Run struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	AsOf         time.Time `json:"as_of"`
	TotalCount   int       `json:"total_count"`
	DueSoonCount int       `json:"due_soon_count"`
	OverdueCount int       `json:"overdue_count"`
	ListedCount  int       `json:"listed_count"`
	Tag          string    `json:"run_tag,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Open connects to url with the pgx driver and creates the schema and tables
// when they are missing.
func Open(ctx context.Context, url, schema string) (*Recorder, error) {
	if strings.TrimSpace(url) == "" {
		return nil, eris.New("history: database url is required")
	}
	schema, err := sanitizeSchema(schema)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, eris.Wrap(err, "history: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "history: ping")
	}
	if err := ensureSchema(ctx, db, schema); err != nil {
		db.Close()
		return nil, err
	}
	return newRecorder(db, schema), nil
}

func newRecorder(db *sql.DB, schema string) *Recorder {
	return &Recorder{db: db, schema: schema}
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record stores fc and its listed entries in one transaction and returns the
// run id.
func (r *Recorder) Record(ctx context.Context, owner string, fc breeding.Forecast, tag string) (string, error) {
	return storeRunTx(ctx, r.db, r.schema, owner, fc, tag)
}

// Seed records fc only when no run exists yet. The returned id is empty when
// the table already had data.
func (r *Recorder) Seed(ctx context.Context, owner string, fc breeding.Forecast, tag string) (string, error) {
	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.forecast_runs`, r.schema)).Scan(&count)
	if err != nil {
		return "", eris.Wrap(err, "history: count runs")
	}
	if count > 0 {
		return "", nil
	}
	return storeRunTx(ctx, r.db, r.schema, owner, fc, tag)
}

// Recent lists the latest runs for owner, newest first.
func (r *Recorder) Recent(ctx context.Context, owner string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, owner, as_of, total_count, due_soon_count, overdue_count,
			listed_count, run_tag, created_at
		FROM %s.forecast_runs
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2`, r.schema), owner, limit)
	if err != nil {
		return nil, eris.Wrap(err, "history: list runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run Run
			tag sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Owner, &run.AsOf, &run.TotalCount, &run.DueSoonCount,
			&run.OverdueCount, &run.ListedCount, &tag, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "history: scan run")
		}
		run.Tag = tag.String
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "history: iterate runs")
}

func storeRunTx(ctx context.Context, db *sql.DB, schema, owner string, fc breeding.Forecast, tag string) (id string, err error) {
	runID := uuid.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "history: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.forecast_runs (
			id, owner, as_of, due_soon_days, horizon_days, total_count,
			due_soon_count, overdue_count, listed_count, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10
		)`, schema),
		runID,
		owner,
		breeding.DateOnly(fc.AsOf),
		fc.DueSoonDays,
		fc.HorizonDays,
		fc.TotalCount,
		fc.DueSoonCount,
		fc.OverdueCount,
		len(fc.Entries),
		nullString(tag),
	)
	if err != nil {
		return "", eris.Wrap(err, "history: insert run")
	}

	insertEntrySQL := fmt.Sprintf(`
		INSERT INTO %s.forecast_entries (
			id, run_id, record_key, female_id, male_id, due_date, days_left, status
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8
		)`, schema)

	for _, entry := range fc.Entries {
		_, err = tx.ExecContext(ctx, insertEntrySQL,
			uuid.New(),
			runID,
			nullString(entry.RecordKey),
			entry.FemaleID,
			entry.MaleID,
			nullDate(entry.DueDate),
			entry.DaysLeft,
			entry.Status.String(),
		)
		if err != nil {
			return "", eris.Wrapf(err, "history: insert entry %s", entry.RecordKey)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", eris.Wrap(err, "history: commit")
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.forecast_runs (
			id uuid PRIMARY KEY,
			owner text NOT NULL,
			as_of date NOT NULL,
			due_soon_days integer NOT NULL,
			horizon_days integer NOT NULL,
			total_count integer NOT NULL,
			due_soon_count integer NOT NULL,
			overdue_count integer NOT NULL,
			listed_count integer NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.forecast_entries (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.forecast_runs(id) ON DELETE CASCADE,
			record_key text,
			female_id text NOT NULL,
			male_id text NOT NULL,
			due_date date,
			days_left integer NOT NULL,
			status text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_forecast_runs_owner_idx ON %s.forecast_runs (owner, created_at)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_forecast_entries_run_idx ON %s.forecast_entries (run_id)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_forecast_entries_status_idx ON %s.forecast_entries (status)`, schema, schema),
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "history: ensure schema")
		}
	}
	return nil
}

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultSchema, nil
	}
	if !schemaPattern.MatchString(value) {
		return "", eris.Errorf("history: invalid schema name: %s", value)
	}
	return value, nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullDate(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: breeding.DateOnly(value), Valid: true}
}
