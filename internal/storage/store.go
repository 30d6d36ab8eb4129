package storage

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

// Record is a stored key-value pair plus the replication metadata that
// travels with it. Records are copied, never shared, when they cross the
// store boundary or move between replicas.
type Record struct {
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	ShardID   string `json:"shard_id"`
	Timestamp int64  `json:"timestamp"` // unix nanoseconds at write time
	Version   int    `json:"version"`   // starts at 1, bumped on replica copy
	Checksum  string `json:"checksum"`
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	out := r
	out.Value = make([]byte, len(r.Value))
	copy(out.Value, r.Value)
	return out
}

// Checksum computes the content checksum stored alongside a record value.
// Uses FNV-1a for consistency with the routing hash.
func Checksum(value []byte) string {
	h := fnv.New64a()
	h.Write(value)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Store defines the interface for record storage
// All implementations must be thread-safe for concurrent access
type Store interface {
	// Get retrieves a record by key
	// Returns ErrKeyNotFound if the key doesn't exist
	Get(key string) (Record, error)

	// Put stores a record under its key
	// Overwrites any existing record for the key
	Put(rec Record) error

	// Delete removes a record
	// Returns ErrKeyNotFound if the key doesn't exist
	Delete(key string) error

	// List returns all keys in the store
	// Order is not guaranteed
	List() []string

	// Scan returns all records with start <= key < end, sorted by key
	Scan(start, end string) []Record

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys  int // Number of records
	Bytes int // Total size of all values in bytes
}

// MemoryStore implements Store with an in-memory map
// Uses sync.RWMutex for thread-safe concurrent access
type MemoryStore struct {
	mu   sync.RWMutex      // Protects concurrent access
	data map[string]Record // Key-record storage
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
	}
}

// Get retrieves a record by key
// Returns a copy of the record to prevent external modification
func (m *MemoryStore) Get(key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.data[key]
	if !exists {
		return Record{}, ErrKeyNotFound
	}
	return rec.Clone(), nil
}

// Put stores a record under its key
// Makes a copy of the record to prevent external modification
func (m *MemoryStore) Put(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[rec.Key] = rec.Clone()
	return nil
}

// Delete removes a record
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists {
		return ErrKeyNotFound
	}
	delete(m.data, key)
	return nil
}

// List returns all keys in the store
// Returns a copy of the keys to prevent external modification
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

// Scan returns all records in the lexicographic range [start, end)
// Records are copies, sorted by key
func (m *MemoryStore) Scan(start, end string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for key, rec := range m.data {
		if key >= start && key < end {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalBytes := 0
	for _, rec := range m.data {
		totalBytes += len(rec.Value)
	}

	return StoreStats{
		Keys:  len(m.data),
		Bytes: totalBytes,
	}
}
