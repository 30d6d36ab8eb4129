// Package api defines the JSON types exchanged over the gridstore HTTP
// surface and small client helpers for talking to it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PutRequest stores a value under a key. ShardID is optional; when empty
// the server routes the key through the shard directory.
type PutRequest struct {
	Value   []byte `json:"value"`
	ShardID string `json:"shard_id,omitempty"`
}

// GetResponse carries a read result
type GetResponse struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// RangeRequest scans [StartKey, EndKey), optionally within one shard
type RangeRequest struct {
	StartKey string `json:"start_key"`
	EndKey   string `json:"end_key"`
	ShardID  string `json:"shard_id,omitempty"`
}

// RangeItem is one key-value pair in a range result
type RangeItem struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// RangeResponse carries a range scan result
type RangeResponse struct {
	Items []RangeItem `json:"items"`
}

// NodeRequest registers a storage node
type NodeRequest struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Capacity int    `json:"capacity"`
}

// ShardRequest declares a shard
type ShardRequest struct {
	ID                string   `json:"id"`
	Strategy          string   `json:"strategy"`
	Nodes             []string `json:"nodes"`
	StartKey          string   `json:"start_key,omitempty"`
	EndKey            string   `json:"end_key,omitempty"`
	ReplicationFactor int      `json:"replication_factor,omitempty"`
}

// ReplicaRequest attaches or detaches a replica
type ReplicaRequest struct {
	ShardID string `json:"shard_id"`
	NodeID  string `json:"node_id"`
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON posts body as JSON and decodes the response into out (skipped
// when out is nil)
func PostJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, out)
}

// GetJSON fetches url and decodes the response into out (skipped when
// out is nil)
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(req, out)
}

// do executes a request and decodes the JSON response into out. Non-2xx
// responses become errors carrying the server's message.
func do(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
