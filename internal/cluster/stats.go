package cluster

import (
	"github.com/dreamware/gridstore/internal/node"
	"github.com/dreamware/gridstore/internal/replication"
	"github.com/dreamware/gridstore/internal/shard"
)

// ShardStats describes one shard's placement for observability
type ShardStats struct {
	Strategy shard.Strategy `json:"strategy"`
	Replicas int            `json:"replicas"`
	Nodes    []string       `json:"nodes"`
	// KeyCounts maps each replica node to the number of keys it holds
	KeyCounts map[string]int `json:"key_counts"`
}

// SystemStats aggregates node, shard, and operation counters for the
// whole cluster
type SystemStats struct {
	TotalNodes           int                          `json:"total_nodes"`
	HealthyNodes         int                          `json:"healthy_nodes"`
	TotalShards          int                          `json:"total_shards"`
	SystemUtilization    float64                      `json:"system_utilization"`
	TotalOperations      uint64                       `json:"total_operations"`
	SuccessfulOperations uint64                       `json:"successful_operations"`
	FailedOperations     uint64                       `json:"failed_operations"`
	SuccessRate          float64                      `json:"success_rate"`
	ConsistencyLevel     replication.ConsistencyLevel `json:"consistency_level"`
	Nodes                map[string]node.Stats        `json:"nodes"`
	Shards               map[string]ShardStats        `json:"shards"`
}

// Statistics returns a snapshot of aggregate cluster state
func (c *Cluster) Statistics() SystemStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := SystemStats{
		TotalNodes:           len(c.nodes),
		TotalShards:          c.shards.NumShards(),
		TotalOperations:      c.totalOps,
		SuccessfulOperations: c.successfulOps,
		FailedOperations:     c.failedOps,
		ConsistencyLevel:     c.repl.Level(),
		Nodes:                make(map[string]node.Stats, len(c.nodes)),
		Shards:               make(map[string]ShardStats),
	}

	totalLoad, totalCapacity := 0.0, 0
	for id, n := range c.nodes {
		ns := n.Statistics()
		stats.Nodes[id] = ns
		totalLoad += ns.Load
		totalCapacity += ns.Capacity
		if n.IsHealthy() {
			stats.HealthyNodes++
		}
	}
	if totalCapacity > 0 {
		stats.SystemUtilization = totalLoad / float64(totalCapacity)
	}
	if c.totalOps > 0 {
		stats.SuccessRate = float64(c.successfulOps) / float64(c.totalOps)
	}

	for _, shardID := range c.shards.Shards() {
		cfg, _ := c.shards.Config(shardID)
		members := c.shards.NodesForShard(shardID)
		ss := ShardStats{
			Strategy:  cfg.Strategy,
			Replicas:  len(members),
			Nodes:     members,
			KeyCounts: make(map[string]int, len(members)),
		}
		for _, nodeID := range members {
			if n, exists := c.nodes[nodeID]; exists {
				ss.KeyCounts[nodeID] = len(n.Keys())
			}
		}
		stats.Shards[shardID] = ss
	}

	return stats
}
