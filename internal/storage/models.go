package storage

import (
	"encoding/json"
	"time"
)

// NodeID identifies an account in the follow graph. Numeric API ids are
// carried in their decimal string form.
type NodeID string

// Attributes is the user object exactly as returned by the API
type Attributes = json.RawMessage

// NodeRecord is a resolved account
type NodeRecord struct {
	ID         NodeID     `json:"id"`
	Attributes Attributes `json:"attributes"`
	VisitCount int        `json:"visit_count"`
}

// EdgeRecord holds the accounts a node follows, in API order.
// Targets never change once the record exists.
type EdgeRecord struct {
	SourceID   NodeID   `json:"source_id"`
	Targets    []NodeID `json:"targets"`
	VisitCount int      `json:"visit_count"`
}

// Quarantine is one member of the error set
type Quarantine struct {
	ID     NodeID    `json:"id"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// DepthCounter tracks the traversal depth. Current only ever increases.
type DepthCounter struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// Snapshot is everything needed to resume a crawl from the same logical point
type Snapshot struct {
	Current    []NodeID
	Next       []NodeID
	Nodes      map[NodeID]*NodeRecord
	Edges      map[NodeID]*EdgeRecord
	Quarantine map[NodeID]Quarantine
	Depth      DepthCounter

	// Layers records the frontier moved into each depth on advance
	Layers map[int][]NodeID
}

// NewSnapshot returns an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Current:    make([]NodeID, 0),
		Next:       make([]NodeID, 0),
		Nodes:      make(map[NodeID]*NodeRecord),
		Edges:      make(map[NodeID]*EdgeRecord),
		Quarantine: make(map[NodeID]Quarantine),
		Layers:     make(map[int][]NodeID),
	}
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	RunID             string    `json:"run_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	NodesResolved     int       `json:"nodes_resolved"`
	NodesDiscovered   int       `json:"nodes_discovered"`
	NodesQuarantined  int       `json:"nodes_quarantined"`
	EdgesRecorded     int       `json:"edges_recorded"`
	RequestsSent      int       `json:"requests_sent"`
	RateLimited       int       `json:"rate_limited"`
	Checkpoints       int       `json:"checkpoints"`
	MaxDepthReached   int       `json:"max_depth_reached"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}
