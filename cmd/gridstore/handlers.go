package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dreamware/gridstore/internal/api"
	"github.com/dreamware/gridstore/internal/cluster"
	"github.com/dreamware/gridstore/internal/shard"
)

// server exposes one in-process cluster over HTTP. The nodes behind it
// are logical actors, not remote peers; this is the client-facing front
// door, not an inter-node protocol.
type server struct {
	cluster *cluster.Cluster
}

func newServer(c *cluster.Cluster) *server {
	return &server{cluster: c}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/data/", s.handleData)
	mux.HandleFunc("/range", s.handleRange)
	mux.HandleFunc("/nodes", s.handleNodes)
	mux.HandleFunc("/nodes/", s.handleNode)
	mux.HandleFunc("/shards", s.handleShards)
	mux.HandleFunc("/replicas", s.handleReplicas)
	mux.HandleFunc("/rebalance", s.handleRebalance)
	mux.HandleFunc("/failures", s.handleFailure)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// handleData serves GET/PUT/DELETE on /data/{key}
func (s *server) handleData(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/data/")
	if key == "" {
		http.Error(w, "key required", http.StatusBadRequest)
		return
	}
	shardID := r.URL.Query().Get("shard")

	switch r.Method {
	case http.MethodGet:
		value, ok := s.cluster.Get(r.Context(), key, shardID)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.GetResponse{Key: key, Value: value})

	case http.MethodPut:
		var req api.PutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.ShardID != "" {
			shardID = req.ShardID
		}
		if !s.cluster.Put(r.Context(), key, req.Value, shardID) {
			http.Error(w, "write failed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if !s.cluster.Delete(r.Context(), key, shardID) {
			http.Error(w, "delete failed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) handleRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req api.RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	results := s.cluster.QueryRange(r.Context(), req.StartKey, req.EndKey, req.ShardID)
	resp := api.RangeResponse{Items: make([]api.RangeItem, 0, len(results))}
	for _, kv := range results {
		resp.Items = append(resp.Items, api.RangeItem{Key: kv.Key, Value: kv.Value})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleNodes serves POST (register) and GET (per-node stats) on /nodes
func (s *server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.cluster.Statistics().Nodes)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req api.NodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if !s.cluster.AddNode(req.ID, req.Host, req.Port, req.Capacity) {
		http.Error(w, "node exists", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNode serves DELETE on /nodes/{id}
func (s *server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/nodes/")
	if id == "" {
		http.Error(w, "node id required", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.cluster.RemoveNode(id) {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleShards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req api.ShardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	strategy := shard.Strategy(req.Strategy)
	if !strategy.Valid() {
		http.Error(w, "unknown strategy", http.StatusBadRequest)
		return
	}
	if !s.cluster.CreateShard(req.ID, strategy, req.Nodes, req.StartKey, req.EndKey, req.ReplicationFactor) {
		http.Error(w, "create shard failed", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleReplicas(w http.ResponseWriter, r *http.Request) {
	var req api.ReplicaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if !s.cluster.AddReplica(req.ShardID, req.NodeID) {
			http.Error(w, "add replica failed", http.StatusBadRequest)
			return
		}
	case http.MethodDelete:
		if !s.cluster.RemoveReplica(req.ShardID, req.NodeID) {
			http.Error(w, "remove replica failed", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.cluster.RebalanceShards() {
		http.Error(w, "rebalance failed", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleFailure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		NodeID string `json:"node_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if !s.cluster.HandleNodeFailure(req.NodeID) {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.cluster.Statistics())
}
