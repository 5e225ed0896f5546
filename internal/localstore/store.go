// Package localstore keeps small per-profile values (session, cart cache) that
// must survive a storefront restart, the server-side counterpart of browser
// local storage.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/KelvenAlvess/marketplace-storefront/internal/platform/config"
)

// ErrInvalidProfile is returned for empty or unsafe profile identifiers.
var ErrInvalidProfile = errors.New("localstore: invalid profile")

// Store persists opaque values per browser profile.
type Store interface {
	Get(ctx context.Context, profile, key string) ([]byte, bool, error)
	Put(ctx context.Context, profile, key string, value []byte) error
	Delete(ctx context.Context, profile, key string) error
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageFile:
		return NewFileStore(cfg.Dir)
	case config.StorageRedis:
		return DialRedis(ctx, cfg)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("localstore: unknown driver %q", cfg.Driver)
	}
}

func validProfile(profile string) error {
	if profile == "" || len(profile) > 64 {
		return ErrInvalidProfile
	}
	for _, r := range profile {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrInvalidProfile
		}
	}
	return nil
}

// MemoryStore keeps values in process memory. Used in tests and single-process dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, profile, key string) ([]byte, bool, error) {
	if err := validProfile(profile); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[profile][strings.TrimSpace(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, profile, key string, value []byte) error {
	if err := validProfile(profile); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[profile]
	if !ok {
		bucket = map[string][]byte{}
		s.data[profile] = bucket
	}
	bucket[strings.TrimSpace(key)] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, profile, key string) error {
	if err := validProfile(profile); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[profile], strings.TrimSpace(key))
	return nil
}

var _ Store = (*MemoryStore)(nil)
