// Package node implements the storage unit of the gridstore cluster: a
// single addressable node owning a local record store, lifecycle state,
// and the load and error counters that feed the health predicate.
//
// # Overview
//
// Nodes are in-process actors addressed by id. Each node serializes its
// own operations behind a per-node mutex and never mutates cluster-wide
// metadata, which keeps the two-tier locking discipline (cluster lock
// above, node lock below) free of ordering cycles.
//
// # Lifecycle
//
// A node moves between four states:
//
//	active ⇄ inactive      failure detection / recovery
//	active → maintenance   administrative drain
//	maintenance → active   administrative return
//	inactive → recovering  rejoin flow, then recovering → active
//
// Writes are accepted in active and recovering (a recovering node must
// accept re-sync traffic); reads are served in every state except
// inactive. Rejected operations count as errors.
//
// # Health
//
// Healthy is a pure function over a Snapshot so the routing eligibility
// rule (active, load below 90% of capacity, error rate below 10%) can be
// unit-tested without constructing a live node.
package node
