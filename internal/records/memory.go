package records

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// MemoryStore keeps records in process memory. It is the default backend and
// the one used by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	farms map[string]*memoryFarm
	now   func() time.Time
}

type memoryFarm struct {
	name        string
	collections map[string]map[string]Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{farms: make(map[string]*memoryFarm), now: time.Now}
}

func (s *MemoryStore) farm(owner string) *memoryFarm {
	f, ok := s.farms[owner]
	if !ok {
		f = &memoryFarm{collections: make(map[string]map[string]Record)}
		s.farms[owner] = f
	}
	return f
}

func (s *MemoryStore) Add(_ context.Context, owner, collection string, rec Record) (string, error) {
	if err := checkScope(owner, collection); err != nil {
		return "", err
	}
	prepared, err := Prepare(collection, rec, s.now())
	if err != nil {
		return "", err
	}
	key := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.farm(owner)
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]Record)
	}
	f.collections[collection][key] = prepared
	return key, nil
}

func (s *MemoryStore) Get(_ context.Context, owner, collection, key string) (Record, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.farms[owner]; ok {
		if rec, ok := f.collections[collection][key]; ok {
			return cloneRecord(rec), nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "%s/%s", collection, key)
}

func (s *MemoryStore) List(_ context.Context, owner, collection string) (map[string]Record, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record)
	if f, ok := s.farms[owner]; ok {
		for key, rec := range f.collections[collection] {
			out[key] = cloneRecord(rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, owner, collection, key string) error {
	if err := checkScope(owner, collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.farms[owner]; ok {
		if _, ok := f.collections[collection][key]; ok {
			delete(f.collections[collection], key)
			return nil
		}
	}
	return eris.Wrapf(ErrNotFound, "%s/%s", collection, key)
}

func (s *MemoryStore) FarmName(_ context.Context, owner string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.farms[owner]; ok && f.name != "" {
		return f.name, nil
	}
	return DefaultFarmName, nil
}

func (s *MemoryStore) SetFarmName(_ context.Context, owner, name string) error {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(owner) == "" || name == "" {
		return eris.Wrap(ErrValidation, "owner and farm name are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.farm(owner).name = name
	return nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
