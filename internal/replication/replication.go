package replication

import (
	"sync"
	"time"

	"github.com/dreamware/gridstore/internal/storage"
)

// ConsistencyLevel determines how many replicas must participate in an
// operation for it to succeed
type ConsistencyLevel string

const (
	// One requires a single replica
	One ConsistencyLevel = "one"
	// Quorum requires a strict majority of replicas
	Quorum ConsistencyLevel = "quorum"
	// All requires every replica
	All ConsistencyLevel = "all"
	// LocalQuorum requires two replicas (or all of them when fewer
	// than two exist)
	LocalQuorum ConsistencyLevel = "local_quorum"
)

// Valid reports whether l is a known consistency level
func (l ConsistencyLevel) Valid() bool {
	switch l {
	case One, Quorum, All, LocalQuorum:
		return true
	}
	return false
}

// maxLogEntries bounds the in-memory write log; the oldest entry is
// dropped when the cap is hit.
const maxLogEntries = 1000

// Op describes one logged write operation
type Op struct {
	Type    string   `json:"type"` // "put" or "delete"
	Key     string   `json:"key"`
	ShardID string   `json:"shard_id"`
	Nodes   []string `json:"nodes"`
}

// LogEntry is an Op plus the time it was logged
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Op        Op        `json:"op"`
}

// Manager sizes quorums for a consistency level, evaluates read results,
// and keeps a bounded in-memory write log for diagnostics and replay.
// The log is not durable.
type Manager struct {
	level ConsistencyLevel

	mu  sync.Mutex
	log []LogEntry
}

// NewManager creates a replication manager at the given consistency
// level (Quorum if the level is unknown)
func NewManager(level ConsistencyLevel) *Manager {
	if !level.Valid() {
		level = Quorum
	}
	return &Manager{level: level}
}

// Level returns the configured consistency level
func (m *Manager) Level() ConsistencyLevel { return m.level }

// RequiredNodes returns how many of total replicas must participate in
// an operation at the configured level
func (m *Manager) RequiredNodes(total int) int {
	if total <= 0 {
		return 0
	}
	switch m.level {
	case One:
		return 1
	case Quorum:
		return total/2 + 1
	case All:
		return total
	default: // LocalQuorum
		if total < 2 {
			return total
		}
		return 2
	}
}

// QuorumNodes selects the quorum from the available replicas: the first
// RequiredNodes entries. Callers pre-sort available by a stable
// criterion (node id) so the selection is reproducible across retries.
func (m *Manager) QuorumNodes(available []string) []string {
	required := m.RequiredNodes(len(available))
	return available[:required]
}

// CheckReadConsistency reports whether a set of read results satisfies
// the configured level. This is a count-only gate; value divergence is
// resolved separately by Resolve.
func (m *Manager) CheckReadConsistency(results []storage.Record) bool {
	switch m.level {
	case One:
		return len(results) >= 1
	case Quorum:
		if len(results) == 0 {
			return false
		}
		return len(results) >= len(results)/2+1
	case All:
		return len(results) >= 1
	default:
		return len(results) >= 1
	}
}

// Resolve picks the winning record from a set of replica reads by
// last-writer-wins: highest version, then latest timestamp. Returns
// false for an empty set.
func (m *Manager) Resolve(results []storage.Record) (storage.Record, bool) {
	if len(results) == 0 {
		return storage.Record{}, false
	}
	winner := results[0]
	for _, rec := range results[1:] {
		if rec.Version > winner.Version ||
			(rec.Version == winner.Version && rec.Timestamp > winner.Timestamp) {
			winner = rec
		}
	}
	return winner, true
}

// LogWrite appends a write operation to the bounded log
func (m *Manager) LogWrite(op Op) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = append(m.log, LogEntry{Timestamp: time.Now(), Op: op})
	if len(m.log) > maxLogEntries {
		m.log = m.log[len(m.log)-maxLogEntries:]
	}
}

// Log returns a copy of the current write log, oldest first
func (m *Manager) Log() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LogEntry, len(m.log))
	copy(out, m.log)
	return out
}
