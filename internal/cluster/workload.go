package cluster

import (
	"context"
	"fmt"
	"time"
)

// WorkloadResult summarizes a simulated workload run
type WorkloadResult struct {
	Operations int           `json:"operations"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	TotalTime  time.Duration `json:"total_time"`
	AvgPerOp   time.Duration `json:"avg_per_op"`
}

// SimulateWorkload issues n randomly-typed operations (put, get, delete)
// against random keys, for benchmarking and load-generation in tests.
// The operation mix is driven by the cluster's seeded random source, so
// a fixed seed reproduces the exact sequence. Gets of absent keys count
// as failed operations, matching the quorum read contract.
func (c *Cluster) SimulateWorkload(ctx context.Context, n int) WorkloadResult {
	result := WorkloadResult{Operations: n}
	if n <= 0 {
		return result
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		c.mu.Lock()
		op := c.rng.Intn(3)
		key := fmt.Sprintf("key_%d", c.rng.Intn(1000)+1)
		value := []byte(fmt.Sprintf("value_%d", c.rng.Intn(10000)+1))
		c.mu.Unlock()

		var ok bool
		switch op {
		case 0:
			ok = c.Put(ctx, key, value, "")
		case 1:
			_, ok = c.Get(ctx, key, "")
		default:
			ok = c.Delete(ctx, key, "")
		}

		if ok {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	result.TotalTime = time.Since(start)
	result.AvgPerOp = result.TotalTime / time.Duration(n)
	return result
}
