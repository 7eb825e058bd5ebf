// Package records stores per-farm record collections (goats, breeding,
// health, sales, user profile) as schema-free documents keyed by owner,
// collection and record key.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Record is one schema-free document. Values are JSON primitives.
type Record = map[string]any

// Collection names.
const (
	CollectionGoats       = "goats"
	CollectionBreeding    = "breeding"
	CollectionHealth      = "health"
	CollectionSales       = "sales"
	CollectionUserProfile = "user_profile"
)

// Collections lists every supported collection in display order.
var Collections = []string{
	CollectionGoats,
	CollectionBreeding,
	CollectionHealth,
	CollectionSales,
	CollectionUserProfile,
}

// requiredFields are the fields a new record must carry, per collection.
var requiredFields = map[string][]string{
	CollectionGoats:       {"tag_number", "breed"},
	CollectionBreeding:    {"female_id", "male_id"},
	CollectionHealth:      {"goat_id"},
	CollectionSales:       {"goat_id"},
	CollectionUserProfile: {"full_name"},
}

// DefaultFarmName is returned for owners that never set a farm name.
const DefaultFarmName = "My Farm"

// CreatedAtField is stamped on every new record.
const CreatedAtField = "created_at"

var (
	ErrNotFound          = errors.New("records: not found")
	ErrInvalidCollection = errors.New("records: invalid collection")
	ErrValidation        = errors.New("records: validation failed")
)

// Store defines the persistence interface for farm records.
type Store interface {
	Add(ctx context.Context, owner, collection string, rec Record) (string, error)
	Get(ctx context.Context, owner, collection, key string) (Record, error)
	List(ctx context.Context, owner, collection string) (map[string]Record, error)
	Delete(ctx context.Context, owner, collection, key string) error

	FarmName(ctx context.Context, owner string) (string, error)
	SetFarmName(ctx context.Context, owner, name string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// Open constructs the Store named by cfg.Driver and runs its migration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		store = NewMemory()
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "goatfarm.db"
		}
		store, err = NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("records: postgres driver requires store.database_url")
		}
		store, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("records: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// ValidCollection reports whether name is a supported collection.
func ValidCollection(name string) bool {
	_, ok := requiredFields[name]
	return ok
}

// Prepare validates rec for collection and returns a copy stamped with
// created_at. The input is not modified.
func Prepare(collection string, rec Record, now time.Time) (Record, error) {
	if !ValidCollection(collection) {
		return nil, eris.Wrapf(ErrInvalidCollection, "collection %q", collection)
	}
	var missing []string
	for _, field := range requiredFields[collection] {
		if !present(rec[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrValidation, "%s requires %s", collection, strings.Join(missing, ", "))
	}
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	if !present(out[CreatedAtField]) {
		out[CreatedAtField] = now.UTC().Format(time.RFC3339)
	}
	return out, nil
}

func checkScope(owner, collection string) error {
	if strings.TrimSpace(owner) == "" {
		return eris.Wrap(ErrValidation, "owner is required")
	}
	if !ValidCollection(collection) {
		return eris.Wrapf(ErrInvalidCollection, "collection %q", collection)
	}
	return nil
}

func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return strings.TrimSpace(fmt.Sprint(v)) != ""
	}
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
