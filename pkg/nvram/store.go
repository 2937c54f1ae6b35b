// Package nvram keeps the small per-instance key/value configuration a
// modem survives restarts with. Reads with a default write the default back,
// so the persisted copy always mirrors the effective configuration; explicit
// writes are flushed synchronously.
package nvram

import (
	"sort"
	"strconv"
	"sync"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// Store is a persisted flat key/value map.
type Store interface {
	// Int returns the value of key, storing def when it is missing or not
	// a number.
	Int(key string, def int) int
	// String returns the value of key, storing def when it is missing.
	String(key, def string) string
	// Lookup returns the value of key without storing anything.
	Lookup(key string) (string, bool)
	// SetInt stores and flushes.
	SetInt(key string, value int) error
	// SetString stores and flushes.
	SetString(key, value string) error
	// Flush writes the current values to the backing storage.
	Flush() error
	// Keys lists the stored keys in order.
	Keys() []string
}

// backend persists a complete snapshot.
type backend interface {
	load() (map[string]string, error)
	save(values map[string]string) error
	describe() string
}

// kvStore implements Store on top of a backend.
type kvStore struct {
	mu      sync.Mutex
	values  map[string]string
	backend backend
	log     *logger.Logger
}

func open(b backend, defaults map[string]string, log *logger.Logger) *kvStore {
	s := &kvStore{backend: b, log: log}
	values, err := b.load()
	if err != nil || len(values) == 0 {
		if err != nil {
			log.Warn("NV store unreadable, reinitializing",
				logger.String("store", b.describe()), logger.Error(err))
		}
		s.values = make(map[string]string, len(defaults))
		for k, v := range defaults {
			s.values[k] = v
		}
		if err := s.Flush(); err != nil {
			log.Warn("Failed to write initial NV store",
				logger.String("store", b.describe()), logger.Error(err))
		}
		return s
	}
	s.values = values
	log.Debug("NV store loaded",
		logger.String("store", b.describe()), logger.Int("keys", len(values)))
	return s
}

func (s *kvStore) Int(key string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := s.values[key]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	s.values[key] = strconv.Itoa(def)
	return def
}

func (s *kvStore) String(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	s.values[key] = def
	return def
}

func (s *kvStore) Lookup(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *kvStore) SetInt(key string, value int) error {
	return s.SetString(key, strconv.Itoa(value))
}

func (s *kvStore) SetString(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return s.Flush()
}

func (s *kvStore) Flush() error {
	s.mu.Lock()
	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.Unlock()
	return s.backend.save(snapshot)
}

func (s *kvStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
