package records

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the store needs. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS farm_records (
	owner      TEXT NOT NULL,
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, collection, key)
);

CREATE TABLE IF NOT EXISTS farms (
	owner      TEXT PRIMARY KEY,
	farm_name  TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_farm_records_owner_collection ON farm_records(owner, collection);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, owner, collection string, rec Record) (string, error) {
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
		return "", eris.Wrap(err, "postgres: marshal record")
	}
	key := uuid.New().String()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO farm_records (owner, collection, key, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		owner, collection, key, data, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert %s record", collection)
	}
	return key, nil
}

func (s *PostgresStore) Get(ctx context.Context, owner, collection, key string) (Record, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM farm_records WHERE owner = $1 AND collection = $2 AND key = $3`,
		owner, collection, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s/%s", collection, key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s/%s", collection, key)
	}
	return decodeRecord(data)
}

func (s *PostgresStore) List(ctx context.Context, owner, collection string) (map[string]Record, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT key, data FROM farm_records WHERE owner = $1 AND collection = $2 ORDER BY key`,
		owner, collection,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", collection)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out[key] = rec
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) Delete(ctx context.Context, owner, collection, key string) error {
	if err := checkScope(owner, collection); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM farm_records WHERE owner = $1 AND collection = $2 AND key = $3`,
		owner, collection, key,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete %s/%s", collection, key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, key)
	}
	return nil
}

func (s *PostgresStore) FarmName(ctx context.Context, owner string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT farm_name FROM farms WHERE owner = $1`, owner).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && name == "") {
		return DefaultFarmName, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: get farm name")
	}
	return name, nil
}

func (s *PostgresStore) SetFarmName(ctx context.Context, owner, name string) error {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(owner) == "" || name == "" {
		return eris.Wrap(ErrValidation, "owner and farm name are required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO farms (owner, farm_name, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (owner) DO UPDATE SET farm_name = EXCLUDED.farm_name, updated_at = EXCLUDED.updated_at`,
		owner, name, s.now().UTC(),
	)
	return eris.Wrap(err, "postgres: set farm name")
}
