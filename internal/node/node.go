package node

import (
	"sync"
	"time"

	"github.com/dreamware/gridstore/internal/storage"
)

// State represents the lifecycle state of a node
type State string

const (
	// StateActive means the node is serving reads and writes
	StateActive State = "active"
	// StateInactive means the node has failed or been taken offline
	StateInactive State = "inactive"
	// StateRecovering means the node is rejoining and re-syncing data
	StateRecovering State = "recovering"
	// StateMaintenance means the node is administratively drained
	StateMaintenance State = "maintenance"
)

// Node is a single storage unit in the cluster. It owns a local record
// store plus the load and error counters the health predicate inspects.
//
// Concurrency: all mutation goes through the node's own mutex. A node
// never touches cluster-wide metadata, so the per-node lock and the
// cluster lock cannot deadlock against each other.
type Node struct {
	id       string
	host     string
	port     int
	capacity int

	mu          sync.Mutex
	state       State
	load        float64
	store       storage.Store
	assignments map[string]struct{}
	opsCount    uint64
	errCount    uint64
	lastActive  time.Time
}

// Stats is a point-in-time view of a node's counters, returned by
// Statistics for observability.
type Stats struct {
	NodeID          string   `json:"node_id"`
	State           State    `json:"state"`
	Capacity        int      `json:"capacity"`
	Load            float64  `json:"load"`
	Utilization     float64  `json:"utilization"`
	OperationsCount uint64   `json:"operations_count"`
	ErrorCount      uint64   `json:"error_count"`
	ErrorRate       float64  `json:"error_rate"`
	Assignments     []string `json:"shard_assignments"`
}

// New creates a node with an empty in-memory store in the active state
func New(id, host string, port, capacity int) *Node {
	return &Node{
		id:          id,
		host:        host,
		port:        port,
		capacity:    capacity,
		state:       StateActive,
		store:       storage.NewMemoryStore(),
		assignments: make(map[string]struct{}),
		lastActive:  time.Now(),
	}
}

// ID returns the node identifier
func (n *Node) ID() string { return n.id }

// Host returns the node's advertised host. Carried for future
// networking; routing never consults it.
func (n *Node) Host() string { return n.host }

// Port returns the node's advertised port
func (n *Node) Port() int { return n.port }

// Store writes a record into the node's local store. Returns false and
// counts an error if the node is not accepting writes or is at capacity.
func (n *Node) Store(rec storage.Record) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.opsCount++
	n.lastActive = time.Now()

	if n.state != StateActive && n.state != StateRecovering {
		n.errCount++
		return false
	}

	// Overwrites don't grow the load; only new keys do.
	_, err := n.store.Get(rec.Key)
	isNew := err != nil

	if isNew && n.load >= float64(n.capacity) {
		n.errCount++
		return false
	}

	if err := n.store.Put(rec); err != nil {
		n.errCount++
		return false
	}
	if isNew {
		n.load++
	}
	return true
}

// Retrieve reads a record from the local store. The second return is
// false when the key is absent or the node is inactive.
func (n *Node) Retrieve(key string) (storage.Record, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.opsCount++
	n.lastActive = time.Now()

	if n.state == StateInactive {
		n.errCount++
		return storage.Record{}, false
	}

	rec, err := n.store.Get(key)
	if err != nil {
		return storage.Record{}, false
	}
	return rec, true
}

// Delete removes a record from the local store. Returns false if the key
// was absent or the node is not accepting writes.
func (n *Node) Delete(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.opsCount++
	n.lastActive = time.Now()

	if n.state != StateActive && n.state != StateRecovering {
		n.errCount++
		return false
	}

	if err := n.store.Delete(key); err != nil {
		return false
	}
	if n.load > 0 {
		n.load--
	}
	return true
}

// QueryRange returns all local records with start <= key < end, sorted
// by key. Returns nil when the node is inactive.
func (n *Node) QueryRange(start, end string) []storage.Record {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.opsCount++
	n.lastActive = time.Now()

	if n.state == StateInactive {
		n.errCount++
		return nil
	}
	return n.store.Scan(start, end)
}

// Keys returns all keys currently held by the node
func (n *Node) Keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.List()
}

// Records returns a copy of every record the node holds, used when
// seeding a new replica.
func (n *Node) Records() []storage.Record {
	n.mu.Lock()
	defer n.mu.Unlock()

	keys := n.store.List()
	out := make([]storage.Record, 0, len(keys))
	for _, key := range keys {
		if rec, err := n.store.Get(key); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

// State returns the node's current lifecycle state
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SetState transitions the node to a new lifecycle state
func (n *Node) SetState(state State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

// Assign records that this node serves a shard
func (n *Node) Assign(shardID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assignments[shardID] = struct{}{}
}

// Unassign removes a shard assignment (no-op if absent)
func (n *Node) Unassign(shardID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.assignments, shardID)
}

// Assignments returns the shard ids this node serves
func (n *Node) Assignments() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.assignments))
	for id := range n.assignments {
		out = append(out, id)
	}
	return out
}

// Statistics returns a snapshot of the node's counters
func (n *Node) Statistics() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()

	utilization := 0.0
	if n.capacity > 0 {
		utilization = n.load / float64(n.capacity)
	}

	assignments := make([]string, 0, len(n.assignments))
	for id := range n.assignments {
		assignments = append(assignments, id)
	}

	return Stats{
		NodeID:          n.id,
		State:           n.state,
		Capacity:        n.capacity,
		Load:            n.load,
		Utilization:     utilization,
		OperationsCount: n.opsCount,
		ErrorCount:      n.errCount,
		ErrorRate:       errorRate(n.errCount, n.opsCount),
		Assignments:     assignments,
	}
}

// Snapshot returns the fields the health predicate evaluates
func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	return Snapshot{
		State:           n.state,
		Load:            n.load,
		Capacity:        n.capacity,
		OperationsCount: n.opsCount,
		ErrorCount:      n.errCount,
	}
}

// IsHealthy reports whether the node is eligible for routing
func (n *Node) IsHealthy() bool {
	return Healthy(n.Snapshot())
}
