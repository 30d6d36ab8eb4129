package replication

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/gridstore/internal/storage"
)

func TestRequiredNodes(t *testing.T) {
	tests := []struct {
		level ConsistencyLevel
		total int
		want  int
	}{
		{One, 1, 1},
		{One, 5, 1},
		{Quorum, 1, 1},
		{Quorum, 2, 2},
		{Quorum, 3, 2},
		{Quorum, 4, 3},
		{Quorum, 5, 3},
		{All, 3, 3},
		{All, 1, 1},
		{LocalQuorum, 1, 1},
		{LocalQuorum, 2, 2},
		{LocalQuorum, 5, 2},
		{Quorum, 0, 0},
		{All, -1, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_n%d", tt.level, tt.total), func(t *testing.T) {
			m := NewManager(tt.level)
			assert.Equal(t, tt.want, m.RequiredNodes(tt.total))
		})
	}
}

func TestQuorumNodes(t *testing.T) {
	t.Run("takes the required prefix", func(t *testing.T) {
		m := NewManager(Quorum)

		got := m.QuorumNodes([]string{"a", "b", "c", "d", "e"})
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("one takes a single node", func(t *testing.T) {
		m := NewManager(One)

		got := m.QuorumNodes([]string{"a", "b", "c"})
		assert.Equal(t, []string{"a"}, got)
	})

	t.Run("all takes everything", func(t *testing.T) {
		m := NewManager(All)

		got := m.QuorumNodes([]string{"a", "b"})
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("empty availability yields empty quorum", func(t *testing.T) {
		m := NewManager(Quorum)

		assert.Empty(t, m.QuorumNodes(nil))
	})
}

func TestCheckReadConsistency(t *testing.T) {
	rec := storage.Record{Key: "k", Value: []byte("v"), Version: 1}

	t.Run("one needs a single result", func(t *testing.T) {
		m := NewManager(One)

		assert.True(t, m.CheckReadConsistency([]storage.Record{rec}))
		assert.False(t, m.CheckReadConsistency(nil))
	})

	t.Run("quorum rejects empty results", func(t *testing.T) {
		m := NewManager(Quorum)

		assert.False(t, m.CheckReadConsistency(nil))
		assert.True(t, m.CheckReadConsistency([]storage.Record{rec, rec}))
	})

	t.Run("all accepts any responses", func(t *testing.T) {
		m := NewManager(All)

		assert.True(t, m.CheckReadConsistency([]storage.Record{rec}))
		assert.False(t, m.CheckReadConsistency(nil))
	})
}

func TestResolve(t *testing.T) {
	m := NewManager(Quorum)

	t.Run("empty set resolves nothing", func(t *testing.T) {
		_, ok := m.Resolve(nil)
		assert.False(t, ok)
	})

	t.Run("highest version wins", func(t *testing.T) {
		results := []storage.Record{
			{Key: "k", Value: []byte("old"), Version: 1, Timestamp: 300},
			{Key: "k", Value: []byte("new"), Version: 3, Timestamp: 100},
			{Key: "k", Value: []byte("mid"), Version: 2, Timestamp: 200},
		}

		winner, ok := m.Resolve(results)
		require.True(t, ok)
		assert.Equal(t, []byte("new"), winner.Value)
		assert.Equal(t, 3, winner.Version)
	})

	t.Run("timestamp breaks version ties", func(t *testing.T) {
		results := []storage.Record{
			{Key: "k", Value: []byte("early"), Version: 2, Timestamp: 100},
			{Key: "k", Value: []byte("late"), Version: 2, Timestamp: 200},
		}

		winner, ok := m.Resolve(results)
		require.True(t, ok)
		assert.Equal(t, []byte("late"), winner.Value)
	})

	t.Run("single result wins by default", func(t *testing.T) {
		winner, ok := m.Resolve([]storage.Record{{Key: "k", Value: []byte("v"), Version: 1}})
		require.True(t, ok)
		assert.Equal(t, []byte("v"), winner.Value)
	})
}

func TestWriteLog(t *testing.T) {
	t.Run("appends entries in order", func(t *testing.T) {
		m := NewManager(Quorum)

		m.LogWrite(Op{Type: "put", Key: "k1"})
		m.LogWrite(Op{Type: "delete", Key: "k2"})

		entries := m.Log()
		require.Len(t, entries, 2)
		assert.Equal(t, "k1", entries[0].Op.Key)
		assert.Equal(t, "k2", entries[1].Op.Key)
	})

	t.Run("drops oldest beyond the cap", func(t *testing.T) {
		m := NewManager(Quorum)

		for i := 0; i < maxLogEntries+10; i++ {
			m.LogWrite(Op{Type: "put", Key: fmt.Sprintf("k%d", i)})
		}

		entries := m.Log()
		require.Len(t, entries, maxLogEntries)
		assert.Equal(t, "k10", entries[0].Op.Key)
	})

	t.Run("log returns a copy", func(t *testing.T) {
		m := NewManager(Quorum)
		m.LogWrite(Op{Type: "put", Key: "k1"})

		entries := m.Log()
		entries[0].Op.Key = "mutated"

		assert.Equal(t, "k1", m.Log()[0].Op.Key)
	})
}

func TestNewManager(t *testing.T) {
	t.Run("unknown level defaults to quorum", func(t *testing.T) {
		m := NewManager("bogus")
		assert.Equal(t, Quorum, m.Level())
	})
}
