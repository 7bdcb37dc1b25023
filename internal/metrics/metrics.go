package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/storage"
)

// Tracker holds and manages crawl metrics. Every update is mirrored to the
// Prometheus collectors.
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker for run
func NewTracker(runID string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			RunID:     runID,
			StartTime: time.Now(),
		},
	}
}

// IncrementNodesResolved counts a newly cached node
func (t *Tracker) IncrementNodesResolved() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesResolved++
	nodesResolvedTotal.Inc()
}

// AddNodesDiscovered counts ids queued for the next depth
func (t *Tracker) AddNodesDiscovered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesDiscovered += n
	nodesDiscoveredTotal.Add(float64(n))
}

// IncrementNodesQuarantined counts a permanent failure
func (t *Tracker) IncrementNodesQuarantined() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesQuarantined++
	quarantinedTotal.Inc()
}

// AddEdgesRecorded counts follow edges stored
func (t *Tracker) AddEdgesRecorded(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRecorded += n
	edgesRecordedTotal.Add(float64(n))
}

// IncrementRequests counts an API call
func (t *Tracker) IncrementRequests() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RequestsSent++
	requestsTotal.Inc()
}

// IncrementRateLimited counts a backoff
func (t *Tracker) IncrementRateLimited() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RateLimited++
	rateLimitedTotal.Inc()
}

// IncrementProcessed counts a completed resolution step
func (t *Tracker) IncrementProcessed() {
	processedTotal.Inc()
}

// IncrementCheckpoints counts a saved checkpoint
func (t *Tracker) IncrementCheckpoints() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Checkpoints++
	checkpointsTotal.Inc()
}

// SetDepth records the depth the crawl advanced to
func (t *Tracker) SetDepth(depth int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if depth > t.data.MaxDepthReached {
		t.data.MaxDepthReached = depth
	}
	currentDepth.Set(float64(depth))
}

// SetFrontier records the frontier sizes
func (t *Tracker) SetFrontier(current, next int) {
	frontierSize.WithLabelValues("current").Set(float64(current))
	frontierSize.WithLabelValues("next").Set(float64(next))
}

// RecordFetchTime records an API call duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
	fetchDuration.Observe(duration.Seconds())
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	// Calculate average fetch time
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats the counters for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Nodes: %d resolved, %d discovered, %d quarantined | Edges: %d | Requests: %d, %d rate limited | Depth: %d",
		t.data.NodesResolved,
		t.data.NodesDiscovered,
		t.data.NodesQuarantined,
		t.data.EdgesRecorded,
		t.data.RequestsSent,
		t.data.RateLimited,
		t.data.MaxDepthReached,
	)
}
