package cluster

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/gridstore/internal/node"
	"github.com/dreamware/gridstore/internal/replication"
	"github.com/dreamware/gridstore/internal/shard"
	"github.com/dreamware/gridstore/internal/storage"
)

// DefaultNodeCapacity is used when AddNode is given a non-positive
// capacity
const DefaultNodeCapacity = 1000

// DefaultReplicationFactor is used when CreateShard is given a
// non-positive replication factor
const DefaultReplicationFactor = 3

// KV is one key-value result from a range query
type KV struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Options configures a Cluster
type Options struct {
	// Consistency is the level applied to every quorum operation
	// (Quorum if unset).
	Consistency replication.ConsistencyLevel

	// Seed seeds the cluster's random source, used for replacement
	// selection during failure recovery and for workload simulation.
	// Zero means seed from the clock.
	Seed int64

	// RingRouting replaces the default hash-modulo routing with a
	// consistent-hash ring keyed by shard id.
	RingRouting bool
}

// Cluster composes nodes, the shard directory, and the replication
// policy into the public key-value store API. It is an explicit state
// object: multiple independent clusters can coexist in one process.
//
// Concurrency: every public operation runs under the cluster lock, which
// guards the node registry, the shard directory, and the operation
// counters. Nodes additionally serialize their own stores behind
// per-node locks; nodes never touch cluster state, so the two tiers
// cannot deadlock. This trades throughput for straightforward
// correctness.
type Cluster struct {
	mu     sync.Mutex
	nodes  map[string]*node.Node
	shards *shard.Manager
	repl   *replication.Manager
	rng    *rand.Rand

	totalOps      uint64
	successfulOps uint64
	failedOps     uint64
}

// New creates a cluster at the given consistency level with clock-seeded
// randomness and the default routing scheme
func New(level replication.ConsistencyLevel) *Cluster {
	return NewWithOptions(Options{Consistency: level})
}

// NewSeeded creates a cluster with a fixed random seed, for reproducible
// failure recovery and workload runs
func NewSeeded(level replication.ConsistencyLevel, seed int64) *Cluster {
	return NewWithOptions(Options{Consistency: level, Seed: seed})
}

// NewWithOptions creates a cluster from explicit options
func NewWithOptions(opts Options) *Cluster {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mgr := shard.NewManager()
	if opts.RingRouting {
		mgr = shard.NewManagerWithRing()
	}
	return &Cluster{
		nodes:  make(map[string]*node.Node),
		shards: mgr,
		repl:   replication.NewManager(opts.Consistency),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// ConsistencyLevel returns the cluster's configured consistency level
func (c *Cluster) ConsistencyLevel() replication.ConsistencyLevel {
	return c.repl.Level()
}

// AddNode registers a new storage node. Fails if the id is empty or
// already taken.
func (c *Cluster) AddNode(id, host string, port, capacity int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		return false
	}
	if _, exists := c.nodes[id]; exists {
		return false
	}
	if capacity <= 0 {
		capacity = DefaultNodeCapacity
	}
	c.nodes[id] = node.New(id, host, port, capacity)
	log.Printf("added node %s at %s:%d (capacity %d)", id, host, port, capacity)
	return true
}

// RemoveNode deregisters a node and detaches it from every shard it was
// assigned to
func (c *Cluster) RemoveNode(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.nodes[id]
	if !exists {
		return false
	}
	for _, shardID := range n.Assignments() {
		c.shards.RemoveNodeFromShard(shardID, id)
	}
	delete(c.nodes, id)
	log.Printf("removed node %s", id)
	return true
}

// CreateShard declares a shard served by the given nodes. Fails if any
// referenced node is unknown or the shard id is already taken.
func (c *Cluster) CreateShard(id string, strategy shard.Strategy, nodes []string, startKey, endKey string, replicationFactor int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, nodeID := range nodes {
		if _, exists := c.nodes[nodeID]; !exists {
			log.Printf("create shard %s: node %s does not exist", id, nodeID)
			return false
		}
	}
	if replicationFactor <= 0 {
		replicationFactor = DefaultReplicationFactor
	}

	err := c.shards.AddShard(shard.Config{
		ID:                id,
		Strategy:          strategy,
		StartKey:          startKey,
		EndKey:            endKey,
		Nodes:             nodes,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		log.Printf("create shard %s: %v", id, err)
		return false
	}

	for _, nodeID := range nodes {
		c.nodes[nodeID].Assign(id)
	}
	log.Printf("created shard %s (%s) on %d nodes", id, strategy, len(nodes))
	return true
}

// Put stores a key-value pair through a quorum write. Every
// quorum-selected node must accept the write for the operation to
// succeed. The context is checked on entry only; operations themselves
// are in-memory and do not block.
func (c *Cluster) Put(ctx context.Context, key string, value []byte, shardID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOps++
	if ctx.Err() != nil {
		c.failedOps++
		return false
	}

	shardID, ok := c.resolveShard(key, shardID)
	if !ok {
		c.failedOps++
		log.Printf("put %q: no shard resolved (routing failure)", key)
		return false
	}

	healthy := c.healthyNodes(c.shards.NodesForShard(shardID))
	if len(healthy) == 0 {
		c.failedOps++
		log.Printf("put %q: no healthy nodes for shard %s (availability failure)", key, shardID)
		return false
	}

	quorum := c.repl.QuorumNodes(healthy)
	val := slices.Clone(value)
	rec := storage.Record{
		Key:       key,
		Value:     val,
		ShardID:   shardID,
		Timestamp: time.Now().UnixNano(),
		Version:   1,
		Checksum:  storage.Checksum(val),
	}

	accepted := 0
	for _, nodeID := range quorum {
		if c.nodes[nodeID].Store(rec) {
			accepted++
		}
	}
	if accepted < len(quorum) {
		c.failedOps++
		log.Printf("put %q: wrote %d/%d quorum nodes (quorum failure)", key, accepted, len(quorum))
		return false
	}

	c.successfulOps++
	c.repl.LogWrite(replication.Op{Type: "put", Key: key, ShardID: shardID, Nodes: quorum})
	return true
}

// Get reads a key through a quorum read. Divergent replica results are
// resolved last-writer-wins by (version, timestamp), and stale quorum
// members are repaired with the winning record before it is returned.
func (c *Cluster) Get(ctx context.Context, key string, shardID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOps++
	if ctx.Err() != nil {
		c.failedOps++
		return nil, false
	}

	shardID, ok := c.resolveShard(key, shardID)
	if !ok {
		c.failedOps++
		log.Printf("get %q: no shard resolved (routing failure)", key)
		return nil, false
	}

	healthy := c.healthyNodes(c.shards.NodesForShard(shardID))
	if len(healthy) == 0 {
		c.failedOps++
		log.Printf("get %q: no healthy nodes for shard %s (availability failure)", key, shardID)
		return nil, false
	}

	quorum := c.repl.QuorumNodes(healthy)
	results := make([]storage.Record, 0, len(quorum))
	reads := make(map[string]storage.Record, len(quorum))
	var missing []string
	for _, nodeID := range quorum {
		rec, found := c.nodes[nodeID].Retrieve(key)
		if found {
			results = append(results, rec)
			reads[nodeID] = rec
		} else {
			missing = append(missing, nodeID)
		}
	}

	if !c.repl.CheckReadConsistency(results) {
		c.failedOps++
		log.Printf("get %q: %d/%d results failed consistency check (quorum failure)", key, len(results), len(quorum))
		return nil, false
	}

	winner, found := c.repl.Resolve(results)
	if !found {
		c.failedOps++
		return nil, false
	}

	// Read repair: converge quorum members that missed the winning
	// write or hold an older version.
	stale := missing
	for nodeID, rec := range reads {
		if rec.Version < winner.Version ||
			(rec.Version == winner.Version && rec.Timestamp < winner.Timestamp) {
			stale = append(stale, nodeID)
		}
	}
	for _, nodeID := range stale {
		c.nodes[nodeID].Store(winner.Clone())
	}

	c.successfulOps++
	return winner.Value, true
}

// Delete removes a key through a quorum write. Every quorum-selected
// node must acknowledge the delete.
func (c *Cluster) Delete(ctx context.Context, key string, shardID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOps++
	if ctx.Err() != nil {
		c.failedOps++
		return false
	}

	shardID, ok := c.resolveShard(key, shardID)
	if !ok {
		c.failedOps++
		log.Printf("delete %q: no shard resolved (routing failure)", key)
		return false
	}

	healthy := c.healthyNodes(c.shards.NodesForShard(shardID))
	if len(healthy) == 0 {
		c.failedOps++
		log.Printf("delete %q: no healthy nodes for shard %s (availability failure)", key, shardID)
		return false
	}

	quorum := c.repl.QuorumNodes(healthy)
	accepted := 0
	for _, nodeID := range quorum {
		if c.nodes[nodeID].Delete(key) {
			accepted++
		}
	}
	if accepted < len(quorum) {
		c.failedOps++
		log.Printf("delete %q: %d/%d quorum nodes acknowledged (quorum failure)", key, accepted, len(quorum))
		return false
	}

	c.successfulOps++
	c.repl.LogWrite(replication.Op{Type: "delete", Key: key, ShardID: shardID, Nodes: quorum})
	return true
}

// QueryRange returns all key-value pairs with start <= key < end, sorted
// by key. With a shard id it scans only that shard's healthy replicas;
// otherwise it scans every shard. Results are de-duplicated per key,
// keeping the highest-version record.
func (c *Cluster) QueryRange(ctx context.Context, startKey, endKey, shardID string) []KV {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOps++
	if ctx.Err() != nil {
		c.failedOps++
		return nil
	}

	var shardIDs []string
	if shardID != "" {
		shardIDs = []string{shardID}
	} else {
		shardIDs = c.shards.Shards()
	}

	best := make(map[string]storage.Record)
	for _, id := range shardIDs {
		for _, nodeID := range c.healthyNodes(c.shards.NodesForShard(id)) {
			for _, rec := range c.nodes[nodeID].QueryRange(startKey, endKey) {
				cur, seen := best[rec.Key]
				if !seen || rec.Version > cur.Version ||
					(rec.Version == cur.Version && rec.Timestamp > cur.Timestamp) {
					best[rec.Key] = rec
				}
			}
		}
	}

	out := make([]KV, 0, len(best))
	for _, rec := range best {
		out = append(out, KV{Key: rec.Key, Value: rec.Value})
	}
	slices.SortFunc(out, func(a, b KV) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})

	c.successfulOps++
	return out
}

// AddReplica attaches a node to a shard and seeds it with a copy of
// every record held by an existing replica, bumping each record's
// version and refreshing its timestamp.
func (c *Cluster) AddReplica(shardID, nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addReplicaLocked(shardID, nodeID)
}

func (c *Cluster) addReplicaLocked(shardID, nodeID string) bool {
	if _, exists := c.shards.Config(shardID); !exists {
		log.Printf("add replica: shard %s does not exist", shardID)
		return false
	}
	target, exists := c.nodes[nodeID]
	if !exists {
		log.Printf("add replica: node %s does not exist", nodeID)
		return false
	}

	existing := c.shards.NodesForShard(shardID)
	c.shards.AddNodeToShard(shardID, nodeID)
	target.Assign(shardID)

	source := c.pickSource(existing, nodeID)
	if source == nil {
		log.Printf("added replica %s to shard %s (no source to copy from)", nodeID, shardID)
		return true
	}

	now := time.Now().UnixNano()
	copied := 0
	for _, rec := range source.Records() {
		rec.ShardID = shardID
		rec.Timestamp = now
		rec.Version++
		if target.Store(rec) {
			copied++
		}
	}
	log.Printf("added replica %s to shard %s (%d records copied from %s)", nodeID, shardID, copied, source.ID())
	return true
}

// pickSource chooses the replica to copy from: the first healthy member
// of the directory, falling back to the first member of any state so
// data held by an inactive node can still be salvaged.
func (c *Cluster) pickSource(existing []string, exclude string) *node.Node {
	var fallback *node.Node
	for _, id := range existing {
		if id == exclude {
			continue
		}
		n, ok := c.nodes[id]
		if !ok {
			continue
		}
		if n.IsHealthy() {
			return n
		}
		if fallback == nil {
			fallback = n
		}
	}
	return fallback
}

// RemoveReplica detaches a node from a shard. Fails if it would leave
// the shard with zero replicas.
func (c *Cluster) RemoveReplica(shardID, nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeReplicaLocked(shardID, nodeID)
}

func (c *Cluster) removeReplicaLocked(shardID, nodeID string) bool {
	if _, exists := c.shards.Config(shardID); !exists {
		return false
	}
	current := c.shards.NodesForShard(shardID)
	if len(current) <= 1 {
		log.Printf("remove replica: refusing to remove last replica of shard %s", shardID)
		return false
	}
	c.shards.RemoveNodeFromShard(shardID, nodeID)
	if n, exists := c.nodes[nodeID]; exists {
		n.Unassign(shardID)
	}
	log.Printf("removed replica %s from shard %s", nodeID, shardID)
	return true
}

// RebalanceShards migrates shard replicas from overloaded nodes
// (load > 1.2x the average) to underloaded ones (load < 0.8x) one shard
// per pairing. Greedy heuristic, not a guaranteed-optimal balance; no
// shard is ever left without a replica.
func (c *Cluster) RebalanceShards() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	loads := make(map[string]float64)
	var ids []string
	for id, n := range c.nodes {
		if n.State() == node.StateActive {
			loads[id] = n.Statistics().Load
			ids = append(ids, id)
		}
	}
	if len(loads) == 0 {
		return false
	}
	slices.Sort(ids)

	total := 0.0
	for _, load := range loads {
		total += load
	}
	avg := total / float64(len(loads))

	var overloaded, underloaded []string
	for _, id := range ids {
		switch {
		case loads[id] > avg*1.2:
			overloaded = append(overloaded, id)
		case loads[id] < avg*0.8:
			underloaded = append(underloaded, id)
		}
	}
	log.Printf("rebalance: avg load %.1f, %d overloaded, %d underloaded", avg, len(overloaded), len(underloaded))

	moved := 0
	for _, over := range overloaded {
		for _, under := range underloaded {
			if c.migrateOneShard(over, under) {
				moved++
			}
			if moved >= len(overloaded) {
				break
			}
		}
		if moved >= len(overloaded) {
			break
		}
	}
	log.Printf("rebalance: moved %d shards", moved)
	return true
}

// migrateOneShard moves one shard replica from over to under. Skips
// shards the target already serves and shards whose removal would drop
// the last replica.
func (c *Cluster) migrateOneShard(over, under string) bool {
	overNode, ok := c.nodes[over]
	if !ok {
		return false
	}
	assignments := overNode.Assignments()
	slices.Sort(assignments)

	for _, shardID := range assignments {
		if slices.Contains(c.shards.NodesForShard(shardID), under) {
			continue
		}
		if !c.removeReplicaLocked(shardID, over) {
			continue
		}
		c.addReplicaLocked(shardID, under)
		return true
	}
	return false
}

// HandleNodeFailure marks a node inactive and detaches it from the
// shards it served. For every affected shard whose healthy replica set
// dropped to zero, a random healthy non-member node is recruited as a
// replacement first. The failed node stays attached only when detaching
// it would leave the shard with no replicas at all.
func (c *Cluster) HandleNodeFailure(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed, exists := c.nodes[nodeID]
	if !exists {
		return false
	}

	failed.SetState(node.StateInactive)
	affected := failed.Assignments()
	slices.Sort(affected)
	log.Printf("node %s failed, %d shards affected", nodeID, len(affected))

	for _, shardID := range affected {
		healthyRemaining := 0
		for _, id := range c.shards.NodesForShard(shardID) {
			if id == nodeID {
				continue
			}
			if n, ok := c.nodes[id]; ok && n.IsHealthy() {
				healthyRemaining++
			}
		}

		if healthyRemaining == 0 {
			candidates := c.replacementCandidates(shardID, nodeID)
			if len(candidates) == 0 {
				log.Printf("shard %s has no healthy replicas and no replacement candidates", shardID)
			} else {
				replacement := candidates[c.rng.Intn(len(candidates))]
				c.addReplicaLocked(shardID, replacement)
				log.Printf("recruited %s as replacement replica for shard %s", replacement, shardID)
			}
		}

		// Detach the failed node unless that would empty the shard.
		if len(c.shards.NodesForShard(shardID)) > 1 {
			c.shards.RemoveNodeFromShard(shardID, nodeID)
			failed.Unassign(shardID)
		}
	}
	return true
}

// replacementCandidates lists healthy nodes not already serving a shard,
// sorted so selection under a fixed seed is reproducible
func (c *Cluster) replacementCandidates(shardID, exclude string) []string {
	members := c.shards.NodesForShard(shardID)
	var out []string
	for id, n := range c.nodes {
		if id == exclude || slices.Contains(members, id) || !n.IsHealthy() {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// RecoverNode walks an inactive node through the rejoin flow: mark it
// recovering, re-sync every shard it is assigned to from a surviving
// healthy replica, then mark it active. Fails unless the node is
// currently inactive.
func (c *Cluster) RecoverNode(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.nodes[nodeID]
	if !exists || n.State() != node.StateInactive {
		return false
	}

	n.SetState(node.StateRecovering)
	assignments := n.Assignments()
	slices.Sort(assignments)

	now := time.Now().UnixNano()
	for _, shardID := range assignments {
		source := c.pickSource(c.shards.NodesForShard(shardID), nodeID)
		if source == nil {
			continue
		}
		for _, rec := range source.Records() {
			rec.ShardID = shardID
			rec.Timestamp = now
			rec.Version++
			n.Store(rec)
		}
	}

	n.SetState(node.StateActive)
	log.Printf("node %s recovered, re-synced %d shards", nodeID, len(assignments))
	return true
}

// EnterMaintenance administratively drains an active node. Maintenance
// nodes fail the health predicate and drop out of quorum selection.
func (c *Cluster) EnterMaintenance(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.nodes[nodeID]
	if !exists || n.State() != node.StateActive {
		return false
	}
	n.SetState(node.StateMaintenance)
	log.Printf("node %s entered maintenance", nodeID)
	return true
}

// ExitMaintenance returns a maintenance node to service
func (c *Cluster) ExitMaintenance(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.nodes[nodeID]
	if !exists || n.State() != node.StateMaintenance {
		return false
	}
	n.SetState(node.StateActive)
	log.Printf("node %s exited maintenance", nodeID)
	return true
}

// NodesForShard returns the replica node ids currently serving a shard
func (c *Cluster) NodesForShard(shardID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shards.NodesForShard(shardID)
}

// ShardForKey exposes the routing function for clients and tests
func (c *Cluster) ShardForKey(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shards.ShardForKey(key)
}

// NodeState returns a node's lifecycle state
func (c *Cluster) NodeState(nodeID string) (node.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.nodes[nodeID]
	if !exists {
		return "", false
	}
	return n.State(), true
}

// Snapshots returns the health snapshot of every node, keyed by id.
// Used by the failure monitor.
func (c *Cluster) Snapshots() map[string]node.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]node.Snapshot, len(c.nodes))
	for id, n := range c.nodes {
		out[id] = n.Snapshot()
	}
	return out
}

// WriteLog returns the replication manager's bounded write log
func (c *Cluster) WriteLog() []replication.LogEntry {
	return c.repl.Log()
}

// resolveShard resolves the target shard for an operation: the explicit
// shard id when given (and known), otherwise the routing function.
// Callers hold the cluster lock.
func (c *Cluster) resolveShard(key, shardID string) (string, bool) {
	if shardID != "" {
		_, exists := c.shards.Config(shardID)
		return shardID, exists
	}
	return c.shards.ShardForKey(key)
}

// healthyNodes filters a replica list down to registered, healthy nodes,
// sorted by id so quorum selection is stable across retries. Callers
// hold the cluster lock.
func (c *Cluster) healthyNodes(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, exists := c.nodes[id]; exists && n.IsHealthy() {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
