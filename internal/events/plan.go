package events

import "time"

// PlanStart is emitted before an operation is planned or looked up in the
// plan cache.
type PlanStart struct {
	OperationName string
}

// PlanFinish is emitted once a plan is available or planning failed.
type PlanFinish struct {
	OperationName string
	OperationType string
	Steps         int
	Nodes         int
	CacheHit      bool
	Err           error
	Duration      time.Duration
}
