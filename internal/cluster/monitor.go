package cluster

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dreamware/gridstore/internal/node"
)

// NodeStatus tracks the monitor's view of a single node.
// Thread-safe: protected by the Monitor's mutex when accessed.
type NodeStatus struct {
	LastCheck        time.Time // Timestamp of the last health evaluation
	LastHealthy      time.Time // Timestamp of the last healthy evaluation
	NodeID           string    // Node identifier
	Status           string    // "healthy", "unhealthy", or "unknown"
	ConsecutiveFails int       // Consecutive failed evaluations
}

// Monitor periodically evaluates the health predicate over every node's
// snapshot and fires a callback when a node crosses the failure
// threshold. The typical wiring points the callback at
// Cluster.HandleNodeFailure so unhealthy nodes are drained and their
// shards re-replicated.
//
// Thread-safe: all methods are safe for concurrent access.
type Monitor struct {
	nodes       map[string]*NodeStatus       // Monitor state per node
	checkFunc   func(node.Snapshot) bool     // Health evaluation, overridable for tests
	onUnhealthy func(nodeID string)          // Callback on healthy→unhealthy transition
	provider    func() map[string]node.Snapshot
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration // How often to evaluate
	mu          sync.RWMutex  // Protects nodes map
	wg          sync.WaitGroup
	maxFailures int // Consecutive failures before marking unhealthy
}

// NewMonitor creates a monitor that evaluates the given snapshot
// provider every interval. Nodes are marked unhealthy after 3
// consecutive failed evaluations.
func NewMonitor(interval time.Duration, provider func() map[string]node.Snapshot) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		nodes:       make(map[string]*NodeStatus),
		checkFunc:   node.Healthy,
		provider:    provider,
		ctx:         ctx,
		cancel:      cancel,
		interval:    interval,
		maxFailures: 3,
	}
}

// SetOnUnhealthy sets the callback invoked (in its own goroutine) when a
// node transitions to unhealthy
func (m *Monitor) SetOnUnhealthy(callback func(nodeID string)) {
	m.onUnhealthy = callback
}

// SetCheckFunc overrides the health evaluation, for tests
func (m *Monitor) SetCheckFunc(check func(node.Snapshot) bool) {
	m.checkFunc = check
}

// Start begins monitoring in the current goroutine and blocks until the
// context is canceled. An initial evaluation runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("failure monitor started with interval %v", m.interval)
	m.checkAll()

	for {
		select {
		case <-ticker.C:
			m.checkAll()
		case <-ctx.Done():
			log.Println("failure monitor stopping")
			return
		case <-m.ctx.Done():
			log.Println("failure monitor stopping")
			return
		}
	}
}

// Stop cancels the monitoring goroutine and waits for it to finish
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// checkAll evaluates every node the provider reports and prunes nodes
// that have left the cluster
func (m *Monitor) checkAll() {
	snapshots := m.provider()

	for id, snap := range snapshots {
		m.checkNode(id, snap)
	}

	m.mu.Lock()
	for id := range m.nodes {
		if _, exists := snapshots[id]; !exists {
			delete(m.nodes, id)
		}
	}
	m.mu.Unlock()
}

// checkNode evaluates one snapshot, updates the node's status, and fires
// the callback on a healthy→unhealthy transition
func (m *Monitor) checkNode(id string, snap node.Snapshot) {
	m.mu.Lock()
	status, exists := m.nodes[id]
	if !exists {
		status = &NodeStatus{
			NodeID:      id,
			Status:      "unknown",
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		m.nodes[id] = status
	}
	m.mu.Unlock()

	healthy := m.checkFunc(snap)

	m.mu.Lock()
	defer m.mu.Unlock()

	status.LastCheck = time.Now()

	if !healthy {
		status.ConsecutiveFails++
		if status.ConsecutiveFails >= m.maxFailures {
			previous := status.Status
			status.Status = "unhealthy"
			if previous != "unhealthy" && m.onUnhealthy != nil {
				log.Printf("node %s marked unhealthy after %d failed checks", id, status.ConsecutiveFails)
				// Callback runs outside the lock.
				go m.onUnhealthy(id)
			}
		}
		return
	}

	if status.Status == "unhealthy" {
		log.Printf("node %s recovered", id)
	}
	status.Status = "healthy"
	status.ConsecutiveFails = 0
	status.LastHealthy = time.Now()
}

// NodeStatus returns a copy of the monitor's view of one node, or nil if
// the node is not tracked
func (m *Monitor) NodeStatus(id string) *NodeStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.nodes[id]
	if !exists {
		return nil
	}
	out := *status
	return &out
}

// IsHealthy reports whether the monitor currently considers a node
// healthy (false for untracked nodes)
func (m *Monitor) IsHealthy(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.nodes[id]
	return exists && status.Status == "healthy"
}
