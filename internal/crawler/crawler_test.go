package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/api"
	"github.com/alvmarrod/follow-weaver/internal/fetcher"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a fixed follow graph. Scripted outcomes are consumed one
// per call before the graph answers normally.
type fakeAPI struct {
	mu         sync.Mutex
	follows    map[storage.NodeID][]storage.NodeID
	nodeScript map[storage.NodeID][]fetcher.Outcome
	edgeScript map[storage.NodeID][]fetcher.Outcome
	nodeCalls  map[storage.NodeID]int
	edgeCalls  map[storage.NodeID]int
	edgeOrder  []storage.NodeID
	// beforeEdges runs at the start of every edge fetch, outside the lock
	beforeEdges func(id storage.NodeID)
}

func newFakeAPI(follows map[storage.NodeID][]storage.NodeID) *fakeAPI {
	return &fakeAPI{
		follows:    follows,
		nodeScript: make(map[storage.NodeID][]fetcher.Outcome),
		edgeScript: make(map[storage.NodeID][]fetcher.Outcome),
		nodeCalls:  make(map[storage.NodeID]int),
		edgeCalls:  make(map[storage.NodeID]int),
	}
}

func (f *fakeAPI) next(script map[storage.NodeID][]fetcher.Outcome, id storage.NodeID) (fetcher.Outcome, bool) {
	if len(script[id]) == 0 {
		return fetcher.Outcome{}, false
	}
	out := script[id][0]
	script[id] = script[id][1:]
	return out, true
}

func (f *fakeAPI) ResolveNode(_ context.Context, id storage.NodeID) (storage.Attributes, fetcher.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nodeCalls[id]++
	if out, ok := f.next(f.nodeScript, id); ok {
		return nil, out
	}
	if _, ok := f.follows[id]; !ok {
		return nil, fetcher.Outcome{Kind: fetcher.Permanent, Reason: "not found", Err: api.ErrNotFound}
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%q}`, id)), fetcher.Outcome{Kind: fetcher.Success}
}

func (f *fakeAPI) ResolveEdges(_ context.Context, id storage.NodeID) ([]storage.NodeID, fetcher.Outcome) {
	if f.beforeEdges != nil {
		f.beforeEdges(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.edgeCalls[id]++
	if out, ok := f.next(f.edgeScript, id); ok {
		return nil, out
	}
	f.edgeOrder = append(f.edgeOrder, id)
	return append([]storage.NodeID(nil), f.follows[id]...), fetcher.Outcome{Kind: fetcher.Success}
}

// countingStore counts saves and can fail them
type countingStore struct {
	Checkpoints
	mu    sync.Mutex
	saves int
	fail  error
}

func (c *countingStore) Save(ctx context.Context, snap *storage.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.saves++
	return c.Checkpoints.Save(ctx, snap)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	b, err := storage.NewBadger(storage.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return &countingStore{Checkpoints: storage.NewCheckpointer(b)}
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func communityGraph() map[storage.NodeID][]storage.NodeID {
	return map[storage.NodeID][]storage.NodeID{
		"A": {"B", "C"},
		"B": {"A", "D"},
		"C": {},
		"D": {},
	}
}

func newTestEngine(fake *fakeAPI, store Checkpoints, target int, sleeper *sleepRecorder) *Engine {
	return NewEngine(fake, store, Options{
		TargetDepth: target,
		Policy:      fetcher.Constant{Wait: time.Second},
		Sleep:       sleeper.Sleep,
		RunID:       "test",
	})
}

func loadSnapshot(t *testing.T, store Checkpoints) *storage.Snapshot {
	t.Helper()
	snap, found, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	return snap
}

func TestCommunityCrawlToDepthTwo(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	store := newStore(t)
	eng := newTestEngine(fake, store, 2, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, summary.Reason)
	assert.Equal(t, 4, summary.Nodes)
	assert.Equal(t, 4, summary.Processed)

	snap := loadSnapshot(t, store)
	assert.ElementsMatch(t, []storage.NodeID{"A", "B", "C", "D"}, keys(snap.Nodes))
	assert.Equal(t, []storage.NodeID{"B", "C"}, snap.Edges["A"].Targets)
	assert.Equal(t, []storage.NodeID{"A", "D"}, snap.Edges["B"].Targets)
	assert.Equal(t, []storage.NodeID{"D"}, snap.Layers[2])
	assert.Equal(t, 2, snap.Depth.Current)
	assert.Empty(t, snap.Current)
	assert.Empty(t, snap.Next)

	for id, n := range snap.Nodes {
		assert.Equal(t, 1, n.VisitCount, id)
	}
}

func TestDepthBoundKeepsBoundaryFrontier(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	store := newStore(t)
	eng := newTestEngine(fake, store, 1, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonDepthReached, summary.Reason)

	snap := loadSnapshot(t, store)
	assert.ElementsMatch(t, []storage.NodeID{"A", "B", "C"}, keys(snap.Nodes))
	assert.Equal(t, []storage.NodeID{"D"}, snap.Current)
	assert.Equal(t, 2, snap.Depth.Current)
	assert.Zero(t, fake.nodeCalls["D"])

	// Extending the target on restart picks up the boundary
	eng = newTestEngine(fake, store, 2, &sleepRecorder{})
	found, err := eng.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, found)

	summary, err = eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, summary.Reason)
	assert.Equal(t, 4, summary.Nodes)
	assert.Equal(t, 1, fake.nodeCalls["A"])
}

func TestDepthOrder(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(map[storage.NodeID][]storage.NodeID{
		"A": {"B", "C"},
		"B": {"E"},
		"C": {"F"},
		"E": {"G"},
		"F": {},
		"G": {},
	})
	eng := newTestEngine(fake, newStore(t), 5, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []storage.NodeID{"A", "B", "C", "E", "F", "G"}, fake.edgeOrder)

	layers := eng.Snapshot().Layers
	assert.Equal(t, []storage.NodeID{"A"}, layers[0])
	assert.Equal(t, []storage.NodeID{"B", "C"}, layers[1])
	assert.Equal(t, []storage.NodeID{"E", "F"}, layers[2])
	assert.Equal(t, []storage.NodeID{"G"}, layers[3])
}

func TestNodeRateLimitedOnce(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	fake.nodeScript["A"] = []fetcher.Outcome{{Kind: fetcher.RateLimited, BackoffHint: 3 * time.Second, Reason: "429"}}
	sleeper := &sleepRecorder{}
	store := newStore(t)
	eng := newTestEngine(fake, store, 0, sleeper)
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sleeper.sleeps, 1)
	assert.Equal(t, 3*time.Second, sleeper.sleeps[0])
	assert.Equal(t, 1, summary.RateLimits)
	assert.Equal(t, 1, summary.Processed)

	snap := loadSnapshot(t, store)
	require.Contains(t, snap.Nodes, storage.NodeID("A"))
	assert.Equal(t, 1, snap.Nodes["A"].VisitCount)
	assert.Equal(t, 2, fake.nodeCalls["A"])
}

func TestEdgesRateLimitedDoesNotRefetchNode(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	fake.edgeScript["A"] = []fetcher.Outcome{
		{Kind: fetcher.RateLimited, Reason: "429"},
		{Kind: fetcher.RateLimited, Reason: "429"},
	}
	sleeper := &sleepRecorder{}
	store := newStore(t)
	eng := NewEngine(fake, store, Options{
		TargetDepth: 0,
		Policy:      fetcher.Exponential{Base: time.Second, Factor: 2},
		Sleep:       sleeper.Sleep,
	})
	eng.Seed([]storage.NodeID{"A"})

	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.sleeps)
	assert.Equal(t, 1, fake.nodeCalls["A"])
	assert.Equal(t, 3, fake.edgeCalls["A"])

	snap := loadSnapshot(t, store)
	assert.Equal(t, 1, snap.Nodes["A"].VisitCount)
	assert.Equal(t, []storage.NodeID{"B", "C"}, snap.Current)
}

func TestEdgesPermanentRollsBack(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	fake.edgeScript["A"] = []fetcher.Outcome{{Kind: fetcher.Permanent, Reason: "protected account"}}
	store := newStore(t)
	eng := newTestEngine(fake, store, 3, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Quarantined)

	snap := loadSnapshot(t, store)
	assert.NotContains(t, snap.Nodes, storage.NodeID("A"))
	assert.NotContains(t, snap.Edges, storage.NodeID("A"))
	require.Contains(t, snap.Quarantine, storage.NodeID("A"))
	assert.Equal(t, "protected account", snap.Quarantine["A"].Reason)
	assert.Empty(t, snap.Next)
	assert.Zero(t, fake.nodeCalls["B"])
	assert.Zero(t, fake.nodeCalls["C"])
}

func TestAlreadyResolvedIsNotFetchedAgain(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(map[storage.NodeID][]storage.NodeID{
		"A": {"B"},
		"C": {"B"},
		"B": {},
	})
	store := newStore(t)
	eng := newTestEngine(fake, store, 1, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A", "C"})

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)

	assert.Equal(t, 1, fake.nodeCalls["B"])
	assert.Equal(t, 1, fake.edgeCalls["B"])

	snap := loadSnapshot(t, store)
	assert.Equal(t, 2, snap.Nodes["B"].VisitCount)
	assert.Equal(t, 2, snap.Edges["B"].VisitCount)
}

func TestQuarantinePermanence(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(map[storage.NodeID][]storage.NodeID{
		"A": {"B", "C"},
		"C": {"B", "D"},
		"D": {"B"},
	})
	store := newStore(t)
	eng := newTestEngine(fake, store, 1, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.nodeCalls["B"])

	// Restart with a deeper target; D and its follow of B come up again
	eng = newTestEngine(fake, store, 4, &sleepRecorder{})
	_, err = eng.Restore(context.Background())
	require.NoError(t, err)
	eng.Seed([]storage.NodeID{"B"})

	_, err = eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.nodeCalls["B"])
	assert.Zero(t, fake.edgeCalls["B"])
	snap := loadSnapshot(t, store)
	assert.Contains(t, snap.Quarantine, storage.NodeID("B"))
	assert.Contains(t, snap.Nodes, storage.NodeID("D"))
}

func TestCheckpointRestoreEquivalence(t *testing.T) {
	t.Parallel()
	graph := map[storage.NodeID][]storage.NodeID{
		"A": {"B", "C", "D"},
		"B": {"E", "F"},
		"C": {"F", "G"},
		"D": {"A"},
		"E": {"H"},
		"F": {},
		"G": {"H", "I"},
		"H": {},
		"I": {"A"},
	}

	straight := newStore(t)
	eng := newTestEngine(newFakeAPI(graph), straight, 4, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})
	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	want := loadSnapshot(t, straight)

	for _, stopAfter := range []int{1, 3, 5, 8} {
		t.Run(fmt.Sprintf("stop after %d", stopAfter), func(t *testing.T) {
			t.Parallel()
			store := newStore(t)
			fake := newFakeAPI(graph)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			processed := 0
			eng := NewEngine(fake, store, Options{
				TargetDepth: 4,
				Sleep:       (&sleepRecorder{}).Sleep,
				MetricsCallback: func(ev Event, n int) {
					if ev == EventProcessed {
						processed += n
						if processed == stopAfter {
							cancel()
						}
					}
				},
			})
			eng.Seed([]storage.NodeID{"A"})
			summary, err := eng.Run(ctx)
			require.NoError(t, err)
			require.Equal(t, ReasonInterrupted, summary.Reason)

			eng = newTestEngine(fake, store, 4, &sleepRecorder{})
			found, err := eng.Restore(context.Background())
			require.NoError(t, err)
			require.True(t, found)
			_, err = eng.Run(context.Background())
			require.NoError(t, err)

			got := loadSnapshot(t, store)
			assert.ElementsMatch(t, keys(want.Nodes), keys(got.Nodes))
			require.Len(t, got.Edges, len(want.Edges))
			for id, edge := range want.Edges {
				assert.Equal(t, edge.Targets, got.Edges[id].Targets, id)
			}
			for id, calls := range fake.edgeCalls {
				assert.Equal(t, 1, calls, "edges of %s fetched more than once", id)
			}
		})
	}
}

func TestPeriodicCheckpoint(t *testing.T) {
	t.Parallel()
	graph := map[storage.NodeID][]storage.NodeID{"A": {}}
	for i := 1; i <= 20; i++ {
		id := storage.NodeID(fmt.Sprintf("n%d", i))
		graph["A"] = append(graph["A"], id)
		graph[id] = nil
	}
	store := newStore(t)
	eng := newTestEngine(newFakeAPI(graph), store, 1, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21, summary.Processed)

	// depth advance, the 15th id of depth 1, and the final checkpoint
	assert.Equal(t, 3, store.saves)
}

func TestAuthenticationFailureStops(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	fake.nodeScript["B"] = []fetcher.Outcome{{Kind: fetcher.Fatal, Reason: "api: unauthorized", Err: api.ErrUnauthorized}}
	store := newStore(t)
	eng := newTestEngine(fake, store, 3, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, ReasonAuthFailed, summary.Reason)

	snap := loadSnapshot(t, store)
	assert.Equal(t, []storage.NodeID{"B", "C"}, snap.Current)
	assert.Contains(t, snap.Nodes, storage.NodeID("A"))
}

func TestInterruptDuringBackoff(t *testing.T) {
	t.Parallel()
	fake := newFakeAPI(communityGraph())
	fake.nodeScript["A"] = []fetcher.Outcome{{Kind: fetcher.RateLimited, Reason: "429"}}
	store := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	eng := NewEngine(fake, store, Options{
		TargetDepth: 2,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonInterrupted, summary.Reason)

	snap := loadSnapshot(t, store)
	assert.Equal(t, []storage.NodeID{"A"}, snap.Current)
	assert.Empty(t, snap.Nodes)
}

func TestStorageFailureIsFatal(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	store.fail = fmt.Errorf("%w: disk full", storage.ErrStorage)
	eng := newTestEngine(newFakeAPI(communityGraph()), store, 2, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	summary, err := eng.Run(context.Background())
	require.ErrorIs(t, err, storage.ErrStorage)
	assert.Equal(t, ReasonStorageError, summary.Reason)
}

func TestSnapshotIncludesInFlight(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(newFakeAPI(communityGraph()), newStore(t), 2, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A", "B"})

	id, ok := eng.current.Pop()
	require.True(t, ok)
	eng.setInFlight(id)

	snap := eng.Snapshot()
	assert.Equal(t, []storage.NodeID{"A", "B"}, snap.Current)
}

func TestSeedSkipsQuarantinedAndDuplicates(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(newFakeAPI(communityGraph()), newStore(t), 2, &sleepRecorder{})
	eng.ledger.Add("X", "gone")

	n := eng.Seed([]storage.NodeID{"A", "X", "A", "B"})
	assert.Equal(t, 2, n)
	assert.Equal(t, []storage.NodeID{"A", "B"}, eng.current.Entries())
}

func TestContextSleep(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ContextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ContextSleep(ctx, time.Hour), context.Canceled)
}

func TestRestoreWithoutCheckpoint(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(newFakeAPI(nil), newStore(t), 2, &sleepRecorder{})

	found, err := eng.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, summary.Reason)
}

func TestRestoreError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	eng := newTestEngine(newFakeAPI(nil), failingLoad{err: boom}, 2, &sleepRecorder{})

	_, err := eng.Restore(context.Background())
	assert.ErrorIs(t, err, boom)
}

type failingLoad struct {
	Checkpoints
	err error
}

func (f failingLoad) Load(context.Context) (*storage.Snapshot, bool, error) {
	return nil, false, f.err
}

func keys[V any](m map[storage.NodeID]V) []storage.NodeID {
	out := make([]storage.NodeID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestCheckpointDuringStepSavesNoHalfResolvedNode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := newFakeAPI(communityGraph())
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.beforeEdges = func(id storage.NodeID) {
		if id == "A" {
			close(entered)
			<-release
		}
	}

	store := newStore(t)
	eng := newTestEngine(fake, store, 0, &sleepRecorder{})
	eng.Seed([]storage.NodeID{"A"})

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(ctx)
		done <- err
	}()

	// A's node is fetched, its edges are not: the second-signal checkpoint
	<-entered
	require.NoError(t, eng.Checkpoint(ctx))
	midStep := loadSnapshot(t, store)
	close(release)
	require.NoError(t, <-done)

	assert.NotContains(t, midStep.Nodes, storage.NodeID("A"))
	assert.NotContains(t, midStep.Edges, storage.NodeID("A"))
	assert.Equal(t, []storage.NodeID{"A"}, midStep.Current)

	t.Run("permanent edges after restart", func(t *testing.T) {
		t.Parallel()
		restartStore := newStore(t)
		require.NoError(t, restartStore.Save(ctx, midStep))

		restarted := newFakeAPI(communityGraph())
		restarted.edgeScript["A"] = []fetcher.Outcome{{Kind: fetcher.Permanent, Reason: "protected", Err: api.ErrForbidden}}
		eng := newTestEngine(restarted, restartStore, 0, &sleepRecorder{})
		found, err := eng.Restore(ctx)
		require.NoError(t, err)
		require.True(t, found)

		_, err = eng.Run(ctx)
		require.NoError(t, err)

		final := loadSnapshot(t, restartStore)
		assert.NotContains(t, final.Nodes, storage.NodeID("A"))
		assert.Contains(t, final.Quarantine, storage.NodeID("A"))
	})

	t.Run("success after restart", func(t *testing.T) {
		t.Parallel()
		restartStore := newStore(t)
		require.NoError(t, restartStore.Save(ctx, midStep))

		restarted := newFakeAPI(communityGraph())
		eng := newTestEngine(restarted, restartStore, 0, &sleepRecorder{})
		_, err := eng.Restore(ctx)
		require.NoError(t, err)

		_, err = eng.Run(ctx)
		require.NoError(t, err)

		final := loadSnapshot(t, restartStore)
		require.Contains(t, final.Nodes, storage.NodeID("A"))
		assert.Equal(t, 1, final.Nodes["A"].VisitCount)
		assert.Equal(t, 1, final.Edges["A"].VisitCount)
	})
}

func TestPermanentFailureDropsNodeWithoutEdges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// A checkpoint holding A's node but not its edges
	snap := storage.NewSnapshot()
	snap.Current = []storage.NodeID{"A"}
	snap.Nodes["A"] = &storage.NodeRecord{ID: "A", Attributes: json.RawMessage(`{"id":"A"}`), VisitCount: 1}
	snap.Depth = storage.DepthCounter{Current: 0, Target: 0}
	store := newStore(t)
	require.NoError(t, store.Save(ctx, snap))

	fake := newFakeAPI(communityGraph())
	fake.edgeScript["A"] = []fetcher.Outcome{{Kind: fetcher.Permanent, Reason: "not found", Err: api.ErrNotFound}}
	eng := newTestEngine(fake, store, 0, &sleepRecorder{})
	_, err := eng.Restore(ctx)
	require.NoError(t, err)

	_, err = eng.Run(ctx)
	require.NoError(t, err)

	final := loadSnapshot(t, store)
	assert.NotContains(t, final.Nodes, storage.NodeID("A"))
	assert.Contains(t, final.Quarantine, storage.NodeID("A"))
	assert.Zero(t, fake.nodeCalls["A"])
}
