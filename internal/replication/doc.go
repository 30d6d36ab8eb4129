// Package replication implements the quorum policy layer for gridstore:
// how many replicas an operation needs at a given consistency level,
// which replicas form the quorum, whether a set of read results is
// acceptable, and which of several divergent reads wins.
//
// The package also keeps a bounded in-memory write log used for
// diagnostics and replay. It is not a durable write-ahead log; nothing
// here touches disk.
package replication
