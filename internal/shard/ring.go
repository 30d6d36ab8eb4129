package shard

import (
	"fmt"
	"hash/fnv"
	"sort"

	"golang.org/x/exp/slices"
)

// DefaultVirtualNodes is the number of ring tokens created per shard.
// More tokens smooth the keyspace distribution at the cost of a larger
// token table.
const DefaultVirtualNodes = 128

// token is one virtual node position on the ring
type token struct {
	hash    uint64
	shardID string
}

// Ring is a consistent-hash ring keyed by shard id. Adding or removing
// a shard only moves the keyspace slices adjacent to that shard's
// tokens, unlike the modulo scheme which remaps most keys on any
// topology change.
//
// Ring is not safe for concurrent use on its own; the Manager guards it
// with its directory lock.
type Ring struct {
	vnodes int
	tokens []token // sorted by hash
}

// NewRing creates an empty ring with the given virtual node count per
// shard (DefaultVirtualNodes if vnodes <= 0)
func NewRing(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = DefaultVirtualNodes
	}
	return &Ring{vnodes: vnodes}
}

// Add places a shard's virtual nodes on the ring (idempotent)
func (r *Ring) Add(shardID string) {
	for _, t := range r.tokens {
		if t.shardID == shardID {
			return
		}
	}
	for i := 0; i < r.vnodes; i++ {
		r.tokens = append(r.tokens, token{
			hash:    ringHash(fmt.Sprintf("%s#%d", shardID, i)),
			shardID: shardID,
		})
	}
	sort.Slice(r.tokens, func(i, j int) bool { return r.tokens[i].hash < r.tokens[j].hash })
}

// Remove takes a shard's virtual nodes off the ring
func (r *Ring) Remove(shardID string) {
	r.tokens = slices.DeleteFunc(r.tokens, func(t token) bool {
		return t.shardID == shardID
	})
}

// Locate returns the shard owning a key: the first token at or after the
// key's hash, wrapping around at the top of the ring. Returns false when
// the ring is empty.
func (r *Ring) Locate(key string) (string, bool) {
	if len(r.tokens) == 0 {
		return "", false
	}

	h := ringHash(key)
	idx, _ := slices.BinarySearchFunc(r.tokens, h, func(t token, target uint64) int {
		switch {
		case t.hash < target:
			return -1
		case t.hash > target:
			return 1
		}
		return 0
	})
	if idx == len(r.tokens) {
		idx = 0
	}
	return r.tokens[idx].shardID, true
}

// Members returns the distinct shard ids on the ring
func (r *Ring) Members() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range r.tokens {
		if _, ok := seen[t.shardID]; !ok {
			seen[t.shardID] = struct{}{}
			out = append(out, t.shardID)
		}
	}
	slices.Sort(out)
	return out
}

// ringHash is the 64-bit token hash (FNV-1a)
func ringHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
