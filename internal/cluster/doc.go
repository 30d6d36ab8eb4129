// Package cluster implements the orchestration layer of gridstore: the
// public put/get/delete/range API over a set of in-process storage
// nodes, partitioned into shards and replicated at a tunable consistency
// level.
//
// # Overview
//
// A Cluster composes three collaborators:
//
//   - the node registry (package node): addressable storage units with
//     lifecycle state, load, and error counters
//   - the shard directory (package shard): which shards exist, which
//     nodes serve them, and which shard owns a key
//   - the replication policy (package replication): quorum sizing,
//     read-consistency evaluation, last-writer-wins resolution, and the
//     bounded write log
//
// # Control Flow
//
// Every data operation follows the same path: resolve the owning shard,
// fetch its replica list, filter to healthy nodes, size the quorum for
// the configured consistency level, perform the operation against each
// quorum member, and combine the results. Writes succeed only when every
// quorum-selected node accepts them; reads pass a count gate and then
// resolve divergence last-writer-wins, repairing stale replicas in
// passing.
//
// # Error Handling
//
// Public operations return booleans or optionals, never errors or
// panics. Failures fall into four kinds: routing (no shard resolves),
// availability (no healthy replica), quorum (insufficient acceptance),
// and topology (unknown node or shard, last-replica removal). Each is
// recorded in the cluster's failed-operation counter and surfaced
// through logs.
// Every failure is recoverable by retrying, rerouting, or adding
// replicas.
//
// # Concurrency
//
// All public operations serialize through one cluster lock, so shard
// directory reads and quorum selection always observe a consistent
// snapshot. Node-local stores have their own locks beneath the cluster
// lock; nodes never reach back into cluster state, so the two tiers
// cannot form ordering cycles. Public operations that take a context
// fail fast when it is already canceled; nothing in this scope blocks,
// so no deeper deadline plumbing exists yet.
//
// # Supporting Pieces
//
// Monitor drives failure detection: it periodically evaluates the node
// health predicate and hands unhealthy node ids to a callback, typically
// Cluster.HandleNodeFailure. Config/LoadConfig build a populated cluster
// from a YAML topology. SimulateWorkload generates a seeded random
// operation mix for benchmarks and tests.
package cluster
