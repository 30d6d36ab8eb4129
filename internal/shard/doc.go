// Package shard implements the shard directory and key routing for
// gridstore: which shards exist, which nodes serve each shard, and which
// shard owns a given key.
//
// # Overview
//
// A shard is a horizontal partition of the keyspace served by an ordered
// list of replica nodes. The Manager is the authoritative directory of
// shard configurations and the single routing function the orchestrator
// consults for every operation.
//
// # Routing
//
// Resolution for a key proceeds in a fixed order:
//
//  1. Hash match: a key belongs to a hash-strategy shard when
//     hash(key) mod n == hash(shardID) mod n over the n registered
//     shards.
//  2. Range probe: range-strategy shards claim keys inside
//     [StartKey, EndKey), compared numerically when both key and bounds
//     parse as numbers, lexically otherwise.
//  3. Fallback: pure hash-modulo over the sorted shard ids.
//
// Resolution fails only when no shards exist. For a fixed topology the
// mapping is deterministic.
//
// The modulo scheme remaps most keys whenever the shard count changes.
// NewManagerWithRing swaps the two hash passes for a consistent-hash
// ring with virtual nodes (see Ring), so adding or removing a shard only
// moves the keyspace adjacent to its tokens. Registered ranges keep
// precedence in ring mode.
package shard
