package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore writes one JSON document per profile under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir when missing.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("localstore: file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localstore: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Get(_ context.Context, profile, key string) ([]byte, bool, error) {
	if err := validProfile(profile); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(profile)
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[strings.TrimSpace(key)]
	return v, ok, nil
}

func (s *FileStore) Put(_ context.Context, profile, key string, value []byte) error {
	if err := validProfile(profile); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(profile)
	if err != nil {
		return err
	}
	doc[strings.TrimSpace(key)] = append([]byte(nil), value...)
	return s.write(profile, doc)
}

func (s *FileStore) Delete(_ context.Context, profile, key string) error {
	if err := validProfile(profile); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(profile)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	if len(doc) == 0 {
		if err := os.Remove(s.path(profile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("localstore: remove profile %s: %w", profile, err)
		}
		return nil
	}
	return s.write(profile, doc)
}

func (s *FileStore) path(profile string) string {
	return filepath.Join(s.dir, profile+".json")
}

func (s *FileStore) read(profile string) (map[string][]byte, error) {
	raw, err := os.ReadFile(s.path(profile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read profile %s: %w", profile, err)
	}
	doc := map[string][]byte{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("localstore: decode profile %s: %w", profile, err)
	}
	return doc, nil
}

// write replaces the profile document atomically via rename.
func (s *FileStore) write(profile string, doc map[string][]byte) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("localstore: encode profile %s: %w", profile, err)
	}
	tmp, err := os.CreateTemp(s.dir, profile+".*.tmp")
	if err != nil {
		return fmt.Errorf("localstore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("localstore: write profile %s: %w", profile, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("localstore: close profile %s: %w", profile, err)
	}
	if err := os.Rename(tmpName, s.path(profile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("localstore: commit profile %s: %w", profile, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
