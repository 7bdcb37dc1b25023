package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/api"
	"github.com/alvmarrod/follow-weaver/internal/fetcher"
	"github.com/alvmarrod/follow-weaver/internal/memory"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Termination reasons reported in the summary and the metrics file
const (
	ReasonDepthReached = "depth_reached"
	ReasonExhausted    = "frontier_exhausted"
	ReasonInterrupted  = "interrupted"
	ReasonAuthFailed   = "auth_failed"
	ReasonFetchFailed  = "fetch_failed"
	ReasonStorageError = "storage_error"
)

// DefaultCheckpointEvery is the number of processed ids between checkpoints
const DefaultCheckpointEvery = 15

// Resolver fetches node attributes and edges. *fetcher.Fetcher implements it.
type Resolver interface {
	ResolveNode(ctx context.Context, id storage.NodeID) (storage.Attributes, fetcher.Outcome)
	ResolveEdges(ctx context.Context, id storage.NodeID) ([]storage.NodeID, fetcher.Outcome)
}

// Checkpoints saves and loads snapshots. *storage.Checkpointer implements it.
type Checkpoints interface {
	Save(ctx context.Context, snap *storage.Snapshot) error
	Load(ctx context.Context) (*storage.Snapshot, bool, error)
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Event identifies a metrics callback
type Event int

const (
	EventProcessed Event = iota
	EventRequest
	EventRateLimited
	EventQuarantined
	EventNodeResolved
	EventEdgesRecorded
	EventDiscovered
	EventCheckpoint
	EventDepth
	// EventFetchTime carries the duration of one API call in milliseconds
	EventFetchTime
)

// Options tune the engine
type Options struct {
	TargetDepth     int
	CheckpointEvery int
	// MaxFollowing caps how many new ids one node adds to the next frontier; 0 is unlimited
	MaxFollowing int
	Policy       fetcher.Policy
	Sleep        Sleeper
	RunID        string
	// MetricsCallback receives every event with its amount
	MetricsCallback func(ev Event, n int)
}

// Summary describes a finished run
type Summary struct {
	RunID       string
	Reason      string
	Depth       storage.DepthCounter
	Nodes       int
	Edges       int
	Quarantined int
	Processed   int
	RateLimits  int
	Requests    int
	Duration    time.Duration
}

// Progress is a point-in-time view of the crawl for progress logs
type Progress struct {
	Depth       storage.DepthCounter
	Current     int
	Next        int
	Nodes       int
	Edges       int
	Quarantined int
	Processed   int
	RateLimits  int
	Requests    int
}

// Engine runs the checkpointed, depth-bounded BFS. One goroutine drives Run;
// Progress, Snapshot and Checkpoint are safe to call from others.
type Engine struct {
	fetch  Resolver
	store  Checkpoints
	opts   Options
	graph  *memory.MemoryGraph
	ledger *Ledger

	current *Frontier
	next    *Frontier

	// staged holds node attributes until the edges of the same step are
	// fetched. A rate-limited step keeps them so the retry does not fetch
	// the node again.
	staged map[storage.NodeID]storage.Attributes

	// stepMu makes the end of a step (records, frontiers, in-flight id)
	// atomic for Snapshot
	stepMu sync.Mutex

	mu              sync.Mutex
	depth           storage.DepthCounter
	layers          map[int][]storage.NodeID
	inFlight        storage.NodeID
	processed       int
	rateLimits      int
	requests        int
	sinceCheckpoint int
	consecutive     int
	dirty           bool

	saveMu sync.Mutex
}

// NewEngine creates an engine with an empty state at depth 0
func NewEngine(fetch Resolver, store Checkpoints, opts Options) *Engine {
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.Policy == nil {
		opts.Policy = fetcher.Constant{Wait: 5 * time.Minute}
	}
	if opts.Sleep == nil {
		opts.Sleep = ContextSleep
	}
	if opts.TargetDepth < 0 {
		opts.TargetDepth = 0
	}

	return &Engine{
		fetch:   fetch,
		store:   store,
		opts:    opts,
		graph:   memory.NewMemoryGraph(),
		ledger:  NewLedger(),
		current: NewFrontier(nil),
		next:    NewFrontier(nil),
		staged:  make(map[storage.NodeID]storage.Attributes),
		depth:   storage.DepthCounter{Current: 0, Target: opts.TargetDepth},
		layers:  make(map[int][]storage.NodeID),
	}
}

// Restore loads the last checkpoint, if any. The configured target depth
// replaces the stored one so a finished crawl can be extended.
func (e *Engine) Restore(ctx context.Context) (bool, error) {
	snap, found, err := e.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if !found {
		return false, nil
	}

	e.graph.LoadFromSnapshot(snap)
	e.ledger.Load(snap.Quarantine)
	e.current.Reset(snap.Current)
	e.next.Reset(snap.Next)

	e.mu.Lock()
	e.depth = storage.DepthCounter{Current: snap.Depth.Current, Target: e.opts.TargetDepth}
	e.layers = make(map[int][]storage.NodeID, len(snap.Layers))
	for d, ids := range snap.Layers {
		e.layers[d] = slices.Clone(ids)
	}
	e.mu.Unlock()

	logrus.Infof("Resuming crawl at depth %d/%d: %d queued, %d next, %d quarantined",
		snap.Depth.Current, e.opts.TargetDepth, len(snap.Current), len(snap.Next), len(snap.Quarantine))
	return true, nil
}

// Seed queues the depth-0 ids of a fresh crawl, skipping duplicates and
// quarantined ids. Returns the number queued
func (e *Engine) Seed(ids []storage.NodeID) int {
	seeds := FilterTargets("", ids, e.ledger.Contains, 0)
	e.current.Push(seeds...)

	e.mu.Lock()
	depth := e.depth.Current
	e.layers[depth] = append(e.layers[depth], seeds...)
	e.mu.Unlock()

	logrus.Infof("Seeded %d ids at depth %d", len(seeds), depth)
	return len(seeds)
}

// Run crawls until the target depth is passed, the frontiers are empty, ctx
// is cancelled or a fatal error occurs. A final checkpoint is always
// attempted. A cancelled run returns ReasonInterrupted and no error.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	p := e.Progress()
	logrus.Infof("Crawl %s starting at depth %d/%d with %d queued", e.opts.RunID, p.Depth.Current, p.Depth.Target, p.Current)

	for {
		if reason, done := e.done(); done {
			return e.finish(ctx, start, reason, nil)
		}
		if ctx.Err() != nil {
			return e.finish(ctx, start, ReasonInterrupted, nil)
		}

		id, ok := e.current.Pop()
		if !ok {
			if err := e.advance(ctx); err != nil {
				return e.finish(ctx, start, ReasonStorageError, err)
			}
			continue
		}

		if e.ledger.Contains(id) {
			logrus.Debugf("Skipping quarantined %s", id)
			continue
		}

		e.setInFlight(id)
		out := e.resolve(ctx, id)

		switch out.Kind {
		case fetcher.Success, fetcher.Permanent:
			if err := e.countStep(ctx); err != nil {
				return e.finish(ctx, start, ReasonStorageError, err)
			}

		case fetcher.RateLimited:
			e.requeue(id)
			delay, err := e.backoff(ctx, id, out)
			if err != nil {
				return e.finish(ctx, start, ReasonStorageError, err)
			}
			if err := e.opts.Sleep(ctx, delay); err != nil {
				return e.finish(ctx, start, ReasonInterrupted, nil)
			}

		case fetcher.Fatal:
			e.requeue(id)
			switch {
			case errors.Is(out.Err, api.ErrUnauthorized):
				return e.finish(ctx, start, ReasonAuthFailed, fmt.Errorf("%w: %s", ErrAuthentication, out.Reason))
			case ctx.Err() != nil:
				return e.finish(ctx, start, ReasonInterrupted, nil)
			default:
				return e.finish(ctx, start, ReasonFetchFailed, fmt.Errorf("fetching %s: %s", id, out.Reason))
			}
		}
	}
}

// done reports whether the crawl has terminated
func (e *Engine) done() (string, bool) {
	e.mu.Lock()
	depth := e.depth
	e.mu.Unlock()

	if depth.Current > depth.Target {
		return ReasonDepthReached, true
	}
	if e.current.Len() == 0 && e.next.Len() == 0 {
		return ReasonExhausted, true
	}
	return "", false
}

// resolve runs one resolution step for id. The node and edge records of a
// step are committed together once both are known.
func (e *Engine) resolve(ctx context.Context, id storage.NodeID) fetcher.Outcome {
	hasNode := e.graph.HasNode(id)
	hasEdges := e.graph.HasEdges(id)

	if hasNode && hasEdges {
		e.commit(func() {
			e.graph.UpsertNode(id, nil)
			e.graph.UpsertEdges(id, nil)
		})
		logrus.Debugf("%s already resolved, visit recorded", id)
		return fetcher.Outcome{Kind: fetcher.Success}
	}

	if _, ok := e.staged[id]; !hasNode && !ok {
		start := time.Now()
		attrs, out := e.fetch.ResolveNode(ctx, id)
		e.fetched(start)
		if !out.OK() {
			return e.fail(id, out)
		}
		e.staged[id] = attrs
	}

	var targets []storage.NodeID
	if !hasEdges {
		start := time.Now()
		var out fetcher.Outcome
		targets, out = e.fetch.ResolveEdges(ctx, id)
		e.fetched(start)
		if !out.OK() {
			return e.fail(id, out)
		}
	}

	// A record left by an interrupted step already counts this visit, so
	// only the missing piece is added
	inserted, queued := false, 0
	e.commit(func() {
		if !hasNode {
			inserted = e.graph.UpsertNode(id, e.staged[id])
		}
		delete(e.staged, id)

		if !hasEdges {
			e.graph.UpsertEdges(id, targets)
			queued = e.enqueue(id, targets)
		}
	})

	if inserted {
		e.emit(EventNodeResolved, 1)
	}
	if !hasEdges {
		e.emit(EventEdgesRecorded, len(targets))
		e.emit(EventDiscovered, queued)
	}
	return fetcher.Outcome{Kind: fetcher.Success}
}

// commit applies fn and ends the in-flight step as one unit
func (e *Engine) commit(fn func()) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	fn()
	e.setInFlight("")
}

// requeue puts id back at the head of the current frontier and ends the
// in-flight step
func (e *Engine) requeue(id storage.NodeID) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	e.current.PushFront(id)
	e.setInFlight("")
}

// enqueue pushes the new targets of source onto the next frontier and
// returns how many were queued
func (e *Engine) enqueue(source storage.NodeID, targets []storage.NodeID) int {
	fresh := FilterTargets(source, targets, func(id storage.NodeID) bool {
		return e.graph.HasEdges(id) || e.ledger.Contains(id)
	}, e.opts.MaxFollowing)

	e.next.Push(fresh...)

	e.mu.Lock()
	depth := e.depth.Current
	e.mu.Unlock()
	logrus.Infof("Resolved %s: follows %d, queued %d (depth %d->%d)", source, len(targets), len(fresh), depth, depth+1)
	return len(fresh)
}

// fail handles a failed fetch. Permanent failures quarantine id.
func (e *Engine) fail(id storage.NodeID, out fetcher.Outcome) fetcher.Outcome {
	if out.Kind != fetcher.Permanent {
		return out
	}

	delete(e.staged, id)
	added := false
	e.commit(func() {
		// A quarantined id keeps no node record
		if !e.graph.HasEdges(id) {
			e.graph.RemoveNode(id)
		}
		added = e.ledger.Add(id, out.Reason)
	})
	if added {
		e.emit(EventQuarantined, 1)
	}
	logrus.Warnf("Quarantined %s: %s", id, out.Reason)
	return out
}

// countStep records a processed id and checkpoints on schedule
func (e *Engine) countStep(ctx context.Context) error {
	e.mu.Lock()
	e.consecutive = 0
	e.processed++
	e.sinceCheckpoint++
	e.dirty = true
	due := e.sinceCheckpoint >= e.opts.CheckpointEvery
	e.mu.Unlock()

	e.emit(EventProcessed, 1)
	if due {
		return e.Checkpoint(ctx)
	}
	return nil
}

// backoff saves unsaved progress and returns how long to wait before id is
// retried
func (e *Engine) backoff(ctx context.Context, id storage.NodeID, out fetcher.Outcome) (time.Duration, error) {
	e.mu.Lock()
	e.consecutive++
	e.rateLimits++
	attempt := e.consecutive
	dirty := e.dirty
	e.mu.Unlock()

	e.emit(EventRateLimited, 1)
	if dirty {
		if err := e.Checkpoint(ctx); err != nil {
			return 0, err
		}
	}

	delay := e.opts.Policy.Delay(attempt, out.BackoffHint)
	logrus.Warnf("Rate limited on %s (%s), attempt %d: backing off for %v", id, out.Reason, attempt, delay)
	return delay, nil
}

// advance moves the next frontier into the current one
func (e *Engine) advance(ctx context.Context) error {
	moved := e.next.Entries()
	e.current.Reset(moved)
	e.next.Reset(nil)

	e.mu.Lock()
	e.depth.Current++
	depth := e.depth
	e.layers[depth.Current] = slices.Clone(moved)
	e.mu.Unlock()

	e.emit(EventDepth, depth.Current)
	logrus.Infof("Depth advanced to %d/%d with %d queued", depth.Current, depth.Target, len(moved))
	return e.Checkpoint(ctx)
}

// Snapshot captures the current state. An id being resolved is put back at
// the head of the current frontier.
func (e *Engine) Snapshot() *storage.Snapshot {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	snap := storage.NewSnapshot()

	e.mu.Lock()
	snap.Depth = e.depth
	for d, ids := range e.layers {
		snap.Layers[d] = slices.Clone(ids)
	}
	inFlight := e.inFlight
	e.mu.Unlock()

	snap.Current = e.current.Entries()
	if inFlight != "" {
		snap.Current = slices.Insert(snap.Current, 0, inFlight)
	}
	snap.Next = e.next.Entries()
	e.graph.Flush(snap)
	snap.Quarantine = e.ledger.Entries()
	return snap
}

// Checkpoint persists a snapshot. The write is not cancelled with ctx.
func (e *Engine) Checkpoint(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap := e.Snapshot()
	if err := e.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}

	e.mu.Lock()
	e.sinceCheckpoint = 0
	e.dirty = false
	e.mu.Unlock()

	e.emit(EventCheckpoint, 1)
	return nil
}

// finish writes the final checkpoint and builds the summary
func (e *Engine) finish(ctx context.Context, start time.Time, reason string, runErr error) (*Summary, error) {
	if err := e.Checkpoint(ctx); err != nil {
		logrus.Errorf("Final checkpoint failed: %v", err)
		if runErr == nil {
			reason = ReasonStorageError
		}
		runErr = errors.Join(runErr, err)
	}

	p := e.Progress()
	summary := &Summary{
		RunID:       e.opts.RunID,
		Reason:      reason,
		Depth:       p.Depth,
		Nodes:       p.Nodes,
		Edges:       p.Edges,
		Quarantined: p.Quarantined,
		Processed:   p.Processed,
		RateLimits:  p.RateLimits,
		Requests:    p.Requests,
		Duration:    time.Since(start),
	}

	logrus.Infof("Crawl finished (%s): depth %d/%d, %d nodes, %d edges, %d quarantined, %d processed in %v",
		reason, summary.Depth.Current, summary.Depth.Target, summary.Nodes, summary.Edges,
		summary.Quarantined, summary.Processed, summary.Duration.Round(time.Millisecond))
	return summary, runErr
}

// Progress returns current counters
func (e *Engine) Progress() Progress {
	nodes, edges := e.graph.GetStats()

	e.mu.Lock()
	defer e.mu.Unlock()

	return Progress{
		Depth:       e.depth,
		Current:     e.current.Len(),
		Next:        e.next.Len(),
		Nodes:       nodes,
		Edges:       edges,
		Quarantined: e.ledger.Len(),
		Processed:   e.processed,
		RateLimits:  e.rateLimits,
		Requests:    e.requests,
	}
}

func (e *Engine) setInFlight(id storage.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = id
}

func (e *Engine) fetched(start time.Time) {
	e.emit(EventRequest, 1)
	e.emit(EventFetchTime, int(time.Since(start).Milliseconds()))
}

func (e *Engine) emit(ev Event, n int) {
	if ev == EventRequest {
		e.mu.Lock()
		e.requests += n
		e.mu.Unlock()
	}
	if e.opts.MetricsCallback != nil {
		e.opts.MetricsCallback(ev, n)
	}
}
