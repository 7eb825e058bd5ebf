package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	pragmas := []string{"PRAGMA busy_timeout=5000", "PRAGMA synchronous=NORMAL"}
	if !strings.Contains(dsn, ":memory:") {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	} else {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS farm_records (
	owner      TEXT NOT NULL,
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (owner, collection, key)
);

CREATE TABLE IF NOT EXISTS farms (
	owner      TEXT PRIMARY KEY,
	farm_name  TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_farm_records_owner_collection ON farm_records(owner, collection);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, owner, collection string, rec Record) (string, error) {
	if err := checkScope(owner, collection); err != nil {
		return "", err
	}
	now := s.now().UTC()
	prepared, err := Prepare(collection, rec, now)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(prepared)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal record")
	}
	key := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO farm_records (owner, collection, key, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		owner, collection, key, string(data), now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert %s record", collection)
	}
	return key, nil
}

func (s *SQLiteStore) Get(ctx context.Context, owner, collection, key string) (Record, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM farm_records WHERE owner = ? AND collection = ? AND key = ?`,
		owner, collection, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s/%s", collection, key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s/%s", collection, key)
	}
	return decodeRecord([]byte(data))
}

func (s *SQLiteStore) List(ctx context.Context, owner, collection string) (map[string]Record, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data FROM farm_records WHERE owner = ? AND collection = ? ORDER BY key`,
		owner, collection,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", collection)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		out[key] = rec
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) Delete(ctx context.Context, owner, collection, key string) error {
	if err := checkScope(owner, collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM farm_records WHERE owner = ? AND collection = ? AND key = ?`,
		owner, collection, key,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete %s/%s", collection, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, key)
	}
	return nil
}

func (s *SQLiteStore) FarmName(ctx context.Context, owner string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT farm_name FROM farms WHERE owner = ?`, owner).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && name == "") {
		return DefaultFarmName, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get farm name")
	}
	return name, nil
}

func (s *SQLiteStore) SetFarmName(ctx context.Context, owner, name string) error {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(owner) == "" || name == "" {
		return eris.Wrap(ErrValidation, "owner and farm name are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO farms (owner, farm_name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET farm_name = excluded.farm_name, updated_at = excluded.updated_at`,
		owner, name, s.now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set farm name")
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "records: decode record")
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
