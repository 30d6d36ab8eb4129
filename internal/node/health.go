package node

// Snapshot captures the node fields the health predicate inspects. It is
// a plain value so the predicate can be tested without a live node.
type Snapshot struct {
	State           State
	Load            float64
	Capacity        int
	OperationsCount uint64
	ErrorCount      uint64
}

// loadHeadroom is the fraction of capacity a node may fill before it is
// considered unhealthy for routing purposes.
const loadHeadroom = 0.9

// maxErrorRate is the error-rate ceiling for a healthy node.
const maxErrorRate = 0.1

// Healthy reports whether a node snapshot is eligible to serve quorum
// operations: active, under 90% of capacity, and under a 10% error rate.
func Healthy(s Snapshot) bool {
	return s.State == StateActive &&
		s.Load < float64(s.Capacity)*loadHeadroom &&
		errorRate(s.ErrorCount, s.OperationsCount) < maxErrorRate
}

// errorRate divides errors by operations, treating a node that has done
// nothing as having a zero rate.
func errorRate(errs, ops uint64) float64 {
	if ops == 0 {
		ops = 1
	}
	return float64(errs) / float64(ops)
}
