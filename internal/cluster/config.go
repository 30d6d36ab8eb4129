package cluster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/gridstore/internal/replication"
	"github.com/dreamware/gridstore/internal/shard"
)

// NodeConfig declares one node in a cluster topology file
type NodeConfig struct {
	ID       string `yaml:"id"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Capacity int    `yaml:"capacity"`
}

// Config declares a full cluster topology: consistency level, nodes,
// and shards. Loaded from YAML.
type Config struct {
	ConsistencyLevel replication.ConsistencyLevel `yaml:"consistency_level"`
	Seed             int64                        `yaml:"seed"`
	RingRouting      bool                         `yaml:"ring_routing"`
	Nodes            []NodeConfig                 `yaml:"nodes"`
	Shards           []shard.Config               `yaml:"shards"`
}

// ParseConfig parses and validates a YAML topology
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.ConsistencyLevel == "" {
		cfg.ConsistencyLevel = replication.Quorum
	}
	if !cfg.ConsistencyLevel.Valid() {
		return Config{}, fmt.Errorf("unknown consistency level %q", cfg.ConsistencyLevel)
	}

	seen := make(map[string]bool)
	for _, n := range cfg.Nodes {
		if n.ID == "" {
			return Config{}, fmt.Errorf("node with empty id")
		}
		if seen[n.ID] {
			return Config{}, fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}

	for _, s := range cfg.Shards {
		if s.ID == "" {
			return Config{}, fmt.Errorf("shard with empty id")
		}
		if !s.Strategy.Valid() {
			return Config{}, fmt.Errorf("shard %s: unknown strategy %q", s.ID, s.Strategy)
		}
		for _, nodeID := range s.Nodes {
			if !seen[nodeID] {
				return Config{}, fmt.Errorf("shard %s references unknown node %q", s.ID, nodeID)
			}
		}
	}

	return cfg, nil
}

// LoadConfig reads and parses a YAML topology file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// NewFromConfig builds a cluster populated with the topology's nodes and
// shards. Fails if any shard declaration is rejected.
func NewFromConfig(cfg Config) (*Cluster, error) {
	c := NewWithOptions(Options{
		Consistency: cfg.ConsistencyLevel,
		Seed:        cfg.Seed,
		RingRouting: cfg.RingRouting,
	})

	for _, n := range cfg.Nodes {
		if !c.AddNode(n.ID, n.Host, n.Port, n.Capacity) {
			return nil, fmt.Errorf("add node %s failed", n.ID)
		}
	}
	for _, s := range cfg.Shards {
		if !c.CreateShard(s.ID, s.Strategy, s.Nodes, s.StartKey, s.EndKey, s.ReplicationFactor) {
			return nil, fmt.Errorf("create shard %s failed", s.ID)
		}
	}
	return c, nil
}
