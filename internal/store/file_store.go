package store

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"wclink/internal/domain"
)

// FileStore is a file-backed key-value store holding one JSON map per
// instance. It satisfies both the row store and the keychain capability; the
// keychain variant should be constructed with its own file so key material
// never mixes with protocol rows.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore stores the map under dir/name.json.
func NewFileStore(dir, name string) *FileStore {
	return &FileStore{path: filepath.Join(dir, name+".json")}
}

var (
	_ domain.KeyValueStore = (*FileStore)(nil)
	_ domain.Keychain      = (*FileStore)(nil)
)

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = append([]byte(nil), value...)
	return writeJSON(s.path, m, 0o600)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return writeJSON(s.path, m, 0o600)
}

func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) load() (map[string][]byte, error) {
	m := make(map[string][]byte)
	if err := readJSON(s.path, &m); err != nil {
		return nil, err
	}
	return m, nil
}
