// Package storage provides the record storage layer for gridstore,
// defining the Store interface and an in-memory implementation used by
// every node in the cluster.
//
// # Overview
//
// A Store holds Records: key-value pairs carrying the replication
// metadata (shard id, timestamp, version, checksum) that the cluster
// layer needs for quorum reads, last-writer-wins resolution, and replica
// synchronization. The storage layer itself knows nothing about shards
// or replication; it is a dumb, thread-safe map with range scans.
//
// # Core Components
//
// Record: The unit of storage
//   - Key-value pair with shard id, timestamp, version, checksum
//   - Always copied across the store boundary, never shared
//
// Store: The storage interface
//   - Get/Put/Delete for point operations
//   - List for key enumeration, Scan for [start, end) range reads
//   - Stats for key and byte counts
//
// MemoryStore: In-memory implementation
//   - map[string]Record behind a sync.RWMutex
//   - O(1) point operations, O(n) scans
//   - Copy-on-read and copy-on-write to prevent aliasing
//
// # Thread Safety
//
// All Store implementations must be safe for concurrent use. MemoryStore
// uses an RWMutex so reads proceed in parallel and writes are exclusive.
//
// # Error Handling
//
// Get and Delete return ErrKeyNotFound for missing keys. Put never fails
// for the in-memory implementation but the interface allows errors so a
// persistent backend can report them.
package storage
