package node

import (
	"bytes"
	"testing"

	"github.com/dreamware/gridstore/internal/storage"
)

// TestHealthy tests the pure health predicate over snapshots
func TestHealthy(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{
			name: "fresh active node is healthy",
			snap: Snapshot{State: StateActive, Load: 0, Capacity: 1000},
			want: true,
		},
		{
			name: "inactive node is unhealthy",
			snap: Snapshot{State: StateInactive, Load: 0, Capacity: 1000},
			want: false,
		},
		{
			name: "maintenance node is unhealthy",
			snap: Snapshot{State: StateMaintenance, Load: 0, Capacity: 1000},
			want: false,
		},
		{
			name: "recovering node is unhealthy for routing",
			snap: Snapshot{State: StateRecovering, Load: 0, Capacity: 1000},
			want: false,
		},
		{
			name: "load just under the 90% headroom",
			snap: Snapshot{State: StateActive, Load: 899, Capacity: 1000},
			want: true,
		},
		{
			name: "load at the 90% headroom",
			snap: Snapshot{State: StateActive, Load: 900, Capacity: 1000},
			want: false,
		},
		{
			name: "error rate under 10%",
			snap: Snapshot{State: StateActive, Capacity: 1000, OperationsCount: 100, ErrorCount: 9},
			want: true,
		},
		{
			name: "error rate at 10%",
			snap: Snapshot{State: StateActive, Capacity: 1000, OperationsCount: 100, ErrorCount: 10},
			want: false,
		},
		{
			name: "zero operations treated as zero error rate",
			snap: Snapshot{State: StateActive, Capacity: 1000, OperationsCount: 0, ErrorCount: 0},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Healthy(tt.snap); got != tt.want {
				t.Errorf("Healthy(%+v) = %v, want %v", tt.snap, got, tt.want)
			}
		})
	}
}

// TestNode tests the storage node operations
func TestNode(t *testing.T) {
	rec := func(key, value string) storage.Record {
		return storage.Record{Key: key, Value: []byte(value), Version: 1}
	}

	t.Run("store and retrieve", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)

		if !n.Store(rec("k1", "v1")) {
			t.Fatal("Store failed on an active node")
		}
		got, found := n.Retrieve("k1")
		if !found {
			t.Fatal("Retrieve missed a stored key")
		}
		if !bytes.Equal(got.Value, []byte("v1")) {
			t.Errorf("Expected 'v1', got %s", string(got.Value))
		}
	})

	t.Run("retrieve missing key", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)

		if _, found := n.Retrieve("missing"); found {
			t.Error("Retrieve reported a missing key as found")
		}
	})

	t.Run("store grows load only for new keys", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)

		n.Store(rec("k1", "v1"))
		n.Store(rec("k1", "v2")) // overwrite

		if load := n.Statistics().Load; load != 1 {
			t.Errorf("Expected load 1 after overwrite, got %v", load)
		}
	})

	t.Run("delete shrinks load", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)

		n.Store(rec("k1", "v1"))
		if !n.Delete("k1") {
			t.Fatal("Delete failed for an existing key")
		}
		if load := n.Statistics().Load; load != 0 {
			t.Errorf("Expected load 0 after delete, got %v", load)
		}
	})

	t.Run("delete missing key fails without error count", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)

		if n.Delete("missing") {
			t.Error("Delete succeeded for a missing key")
		}
		if errs := n.Statistics().ErrorCount; errs != 0 {
			t.Errorf("Missing-key delete should not count as an error, got %d", errs)
		}
	})

	t.Run("inactive node rejects operations", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)
		n.SetState(StateInactive)

		if n.Store(rec("k1", "v1")) {
			t.Error("Store succeeded on an inactive node")
		}
		if _, found := n.Retrieve("k1"); found {
			t.Error("Retrieve succeeded on an inactive node")
		}
		if stats := n.Statistics(); stats.ErrorCount != 2 {
			t.Errorf("Expected 2 errors from rejected operations, got %d", stats.ErrorCount)
		}
	})

	t.Run("recovering node accepts writes and reads", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)
		n.SetState(StateRecovering)

		if !n.Store(rec("k1", "v1")) {
			t.Error("Store failed on a recovering node")
		}
		if _, found := n.Retrieve("k1"); !found {
			t.Error("Retrieve failed on a recovering node")
		}
	})

	t.Run("maintenance node rejects writes but serves reads", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)
		n.Store(rec("k1", "v1"))
		n.SetState(StateMaintenance)

		if n.Store(rec("k2", "v2")) {
			t.Error("Store succeeded on a maintenance node")
		}
		if _, found := n.Retrieve("k1"); !found {
			t.Error("Retrieve failed on a maintenance node")
		}
	})

	t.Run("store rejects new keys at capacity", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 2)

		n.Store(rec("k1", "v1"))
		n.Store(rec("k2", "v2"))
		if n.Store(rec("k3", "v3")) {
			t.Error("Store accepted a new key beyond capacity")
		}
		// Overwrites of existing keys are still allowed.
		if !n.Store(rec("k1", "v1b")) {
			t.Error("Store rejected an overwrite at capacity")
		}
	})

	t.Run("query range is inclusive-exclusive", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)
		for _, key := range []string{"a", "b", "c"} {
			n.Store(rec(key, "v"))
		}

		recs := n.QueryRange("a", "c")
		if len(recs) != 2 {
			t.Fatalf("Expected 2 records in [a, c), got %d", len(recs))
		}
		if recs[0].Key != "a" || recs[1].Key != "b" {
			t.Errorf("Expected keys a, b, got %s, %s", recs[0].Key, recs[1].Key)
		}
	})

	t.Run("assignments", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)

		n.Assign("s1")
		n.Assign("s2")
		n.Assign("s1") // idempotent
		if got := n.Assignments(); len(got) != 2 {
			t.Errorf("Expected 2 assignments, got %d", len(got))
		}

		n.Unassign("s1")
		if got := n.Assignments(); len(got) != 1 || got[0] != "s2" {
			t.Errorf("Expected only s2 assigned, got %v", got)
		}
	})

	t.Run("statistics", func(t *testing.T) {
		n := New("n1", "localhost", 9001, 100)
		n.Store(rec("k1", "v1"))
		n.Retrieve("k1")

		stats := n.Statistics()
		if stats.NodeID != "n1" {
			t.Errorf("Expected node id n1, got %s", stats.NodeID)
		}
		if stats.OperationsCount != 2 {
			t.Errorf("Expected 2 operations, got %d", stats.OperationsCount)
		}
		if stats.Utilization != 0.01 {
			t.Errorf("Expected utilization 0.01, got %v", stats.Utilization)
		}
	})
}
