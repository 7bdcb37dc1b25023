package memory

import (
	"encoding/json"
	"testing"

	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertNodeCountsVisits(t *testing.T) {
	t.Parallel()
	mg := NewMemoryGraph()

	assert.True(t, mg.UpsertNode("1", json.RawMessage(`{"name":"first"}`)))
	assert.False(t, mg.UpsertNode("1", json.RawMessage(`{"name":"second"}`)))

	node, ok := mg.Node("1")
	require.True(t, ok)
	assert.Equal(t, 2, node.VisitCount)
	assert.JSONEq(t, `{"name":"first"}`, string(node.Attributes))
}

func TestUpsertEdgesTargetsImmutable(t *testing.T) {
	t.Parallel()
	mg := NewMemoryGraph()

	targets := []storage.NodeID{"2", "3"}
	assert.True(t, mg.UpsertEdges("1", targets))
	targets[0] = "99"
	assert.False(t, mg.UpsertEdges("1", []storage.NodeID{"4"}))

	snap := storage.NewSnapshot()
	mg.Flush(snap)
	edge, ok := snap.Edges["1"]
	require.True(t, ok)
	assert.Equal(t, []storage.NodeID{"2", "3"}, edge.Targets)
	assert.Equal(t, 2, edge.VisitCount)
	assert.True(t, mg.HasEdges("1"))
	assert.False(t, mg.HasEdges("2"))
}

func TestRemoveNode(t *testing.T) {
	t.Parallel()
	mg := NewMemoryGraph()

	mg.UpsertNode("1", nil)
	mg.RemoveNode("1")
	assert.False(t, mg.HasNode("1"))
}

func TestFlushDoesNotAlias(t *testing.T) {
	t.Parallel()
	mg := NewMemoryGraph()
	mg.UpsertNode("1", json.RawMessage(`{}`))
	mg.UpsertEdges("1", []storage.NodeID{"2"})

	snap := storage.NewSnapshot()
	mg.Flush(snap)

	mg.UpsertNode("1", nil)
	mg.UpsertEdges("1", nil)
	mg.UpsertNode("2", nil)

	assert.Equal(t, 1, snap.Nodes["1"].VisitCount)
	assert.Equal(t, 1, snap.Edges["1"].VisitCount)
	assert.NotContains(t, snap.Nodes, storage.NodeID("2"))
}

func TestLoadFromSnapshot(t *testing.T) {
	t.Parallel()

	snap := storage.NewSnapshot()
	snap.Nodes["1"] = &storage.NodeRecord{ID: "1", VisitCount: 3}
	snap.Edges["1"] = &storage.EdgeRecord{SourceID: "1", Targets: []storage.NodeID{"2", "3"}, VisitCount: 3}

	mg := NewMemoryGraph()
	mg.UpsertNode("stale", nil)
	mg.LoadFromSnapshot(snap)

	snap.Nodes["1"].VisitCount = 100

	assert.False(t, mg.HasNode("stale"))
	node, ok := mg.Node("1")
	require.True(t, ok)
	assert.Equal(t, 3, node.VisitCount)

	nodes, edges := mg.GetStats()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 2, edges)
}
