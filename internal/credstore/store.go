package credstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store is a flat string-to-string credential cache. Reads and writes
// never fail from the caller's point of view; persistence problems are
// logged and the in-memory view stays authoritative.
type Store interface {
	Put(key, value string)
	Get(key string) (string, bool)
	Remove(key string)
}

// FileStore persists the cache as one JSON file per gateway origin, so
// two deployments pointed at different gateways never share tokens.
type FileStore struct {
	path string
	log  *zap.Logger

	mu     sync.Mutex
	values map[string]string
}

// NewFileStore opens the cache file for the given origin inside dir,
// creating an empty store when the file is missing or unreadable.
func NewFileStore(dir, origin string, log *zap.Logger) *FileStore {
	sum := sha256.Sum256([]byte(origin))
	s := &FileStore{
		path:   filepath.Join(dir, "creds-"+hex.EncodeToString(sum[:8])+".json"),
		log:    log,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("credential cache unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return s
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		log.Warn("credential cache corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		s.values = make(map[string]string)
	}
	return s
}

func (s *FileStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.flush()
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.flush()
}

// flush writes the cache to disk. Callers hold the lock.
func (s *FileStore) flush() {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		s.log.Warn("failed to encode credential cache", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		s.log.Warn("failed to persist credential cache",
			zap.String("path", s.path), zap.Error(err))
	}
}
