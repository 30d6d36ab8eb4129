package shard

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"golang.org/x/exp/slices"
)

// Strategy selects how keys are mapped onto a shard
type Strategy string

const (
	// StrategyHash routes keys by hash-modulo matching against shard ids
	StrategyHash Strategy = "hash"
	// StrategyRange routes keys falling inside [StartKey, EndKey)
	StrategyRange Strategy = "range"
	// StrategyDirectory routes keys by explicit directory lookup; keys
	// not pinned elsewhere fall through to the hash fallback
	StrategyDirectory Strategy = "directory"
)

// Valid reports whether s is a known strategy
func (s Strategy) Valid() bool {
	switch s {
	case StrategyHash, StrategyRange, StrategyDirectory:
		return true
	}
	return false
}

// Config describes a shard: its routing strategy, optional key range,
// and the ordered list of replica nodes serving it.
type Config struct {
	ID                string   `json:"id" yaml:"id"`
	Strategy          Strategy `json:"strategy" yaml:"strategy"`
	StartKey          string   `json:"start_key,omitempty" yaml:"start_key,omitempty"`
	EndKey            string   `json:"end_key,omitempty" yaml:"end_key,omitempty"`
	Nodes             []string `json:"nodes" yaml:"nodes"`
	ReplicationFactor int      `json:"replication_factor" yaml:"replication_factor"`
}

// clone returns a copy with its own node slice
func (c Config) clone() Config {
	out := c
	out.Nodes = slices.Clone(c.Nodes)
	return out
}

// Manager owns the shard directory and the key→shard routing function.
//
// Routing tries hash-modulo matching first, then registered key ranges,
// then falls back to pure hash-modulo over all shards. The modulo scheme
// is not a consistent-hash ring: changing the shard count remaps most
// keys. NewManagerWithRing substitutes a virtual-node ring for the
// modulo passes so that topology changes only move a bounded slice of
// the keyspace.
//
// Concurrency: RWMutex, copy-out on every accessor. Only the cluster
// orchestrator mutates the directory.
type Manager struct {
	mu     sync.RWMutex
	shards map[string]Config
	order  []string // shard ids, sorted, for deterministic iteration
	ring   *Ring    // nil unless ring routing is enabled
}

// NewManager creates a shard manager using the default hash-modulo
// routing scheme
func NewManager() *Manager {
	return &Manager{shards: make(map[string]Config)}
}

// NewManagerWithRing creates a shard manager that routes non-range keys
// through a consistent-hash ring keyed by shard id
func NewManagerWithRing() *Manager {
	return &Manager{
		shards: make(map[string]Config),
		ring:   NewRing(DefaultVirtualNodes),
	}
}

// AddShard registers a shard. Fails if the id is already taken, the
// strategy is unknown, or a range shard is missing its bounds.
func (m *Manager) AddShard(cfg Config) error {
	if cfg.ID == "" {
		return errors.New("shard id cannot be empty")
	}
	if !cfg.Strategy.Valid() {
		return fmt.Errorf("unknown shard strategy %q", cfg.Strategy)
	}
	if cfg.Strategy == StrategyRange && cfg.StartKey == "" && cfg.EndKey == "" {
		return fmt.Errorf("range shard %s has no key range", cfg.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.shards[cfg.ID]; exists {
		return fmt.Errorf("shard %s already exists", cfg.ID)
	}

	m.shards[cfg.ID] = cfg.clone()
	m.order = append(m.order, cfg.ID)
	slices.Sort(m.order)

	if m.ring != nil {
		m.ring.Add(cfg.ID)
	}
	return nil
}

// RemoveShard deregisters a shard and its range entry (no error if the
// shard doesn't exist)
func (m *Manager) RemoveShard(shardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.shards[shardID]; !exists {
		return
	}
	delete(m.shards, shardID)
	if idx := slices.Index(m.order, shardID); idx >= 0 {
		m.order = slices.Delete(m.order, idx, idx+1)
	}
	if m.ring != nil {
		m.ring.Remove(shardID)
	}
}

// ShardForKey resolves the shard owning a key. Returns false only when
// the directory is empty. Resolution is deterministic for a fixed
// topology. The hash-match pass runs before the range probe, so a key
// inside a registered range still lands on a hash shard when their
// residues collide; ring routing avoids this by checking ranges first.
func (m *Manager) ShardForKey(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.shards) == 0 {
		return "", false
	}

	if m.ring != nil {
		// Registered ranges take precedence, everything else goes
		// through the ring.
		for _, id := range m.order {
			cfg := m.shards[id]
			if cfg.Strategy == StrategyRange && keyInRange(key, cfg.StartKey, cfg.EndKey) {
				return id, true
			}
		}
		return m.ring.Locate(key)
	}

	n := len(m.shards)

	// Hash-modulo match: a key belongs to a hash shard when key and
	// shard id land on the same residue.
	keyMod := hashKey(key) % n
	for _, id := range m.order {
		cfg := m.shards[id]
		if cfg.Strategy == StrategyHash && hashKey(id)%n == keyMod {
			return id, true
		}
	}

	// Range probe.
	for _, id := range m.order {
		cfg := m.shards[id]
		if cfg.Strategy == StrategyRange && keyInRange(key, cfg.StartKey, cfg.EndKey) {
			return id, true
		}
	}

	// Pure hash-modulo fallback over all shards.
	return m.order[keyMod], true
}

// NodesForShard returns a copy of the node list serving a shard
func (m *Manager) NodesForShard(shardID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, exists := m.shards[shardID]
	if !exists {
		return nil
	}
	return slices.Clone(cfg.Nodes)
}

// AddNodeToShard attaches a node to a shard's replica list (idempotent,
// no-op for unknown shards)
func (m *Manager) AddNodeToShard(shardID, nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, exists := m.shards[shardID]
	if !exists || slices.Contains(cfg.Nodes, nodeID) {
		return
	}
	cfg.Nodes = append(cfg.Nodes, nodeID)
	m.shards[shardID] = cfg
}

// RemoveNodeFromShard detaches a node from a shard's replica list
// (idempotent, no-op for unknown shards)
func (m *Manager) RemoveNodeFromShard(shardID, nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, exists := m.shards[shardID]
	if !exists {
		return
	}
	if idx := slices.Index(cfg.Nodes, nodeID); idx >= 0 {
		cfg.Nodes = slices.Delete(cfg.Nodes, idx, idx+1)
		m.shards[shardID] = cfg
	}
}

// Shards returns all shard ids in sorted order
func (m *Manager) Shards() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Config returns a copy of a shard's configuration
func (m *Manager) Config(shardID string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, exists := m.shards[shardID]
	if !exists {
		return Config{}, false
	}
	return cfg.clone(), true
}

// NumShards returns the number of registered shards
func (m *Manager) NumShards() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shards)
}

// hashKey maps a string onto a non-negative bucket seed.
// Uses FNV-1a for consistency with record checksums.
func hashKey(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32())
}

// keyInRange reports whether start <= key < end, comparing numerically
// when all three parse as numbers and lexically otherwise. An empty
// bound is open on that side.
func keyInRange(key, start, end string) bool {
	kf, kerr := strconv.ParseFloat(key, 64)
	sf, serr := strconv.ParseFloat(start, 64)
	ef, eerr := strconv.ParseFloat(end, 64)
	if kerr == nil && serr == nil && eerr == nil {
		return sf <= kf && kf < ef
	}
	if start != "" && key < start {
		return false
	}
	if end != "" && key >= end {
		return false
	}
	return start != "" || end != ""
}
