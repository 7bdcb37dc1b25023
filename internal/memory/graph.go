package memory

import (
	"slices"
	"sync"

	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// MemoryGraph holds the node cache and edge store in memory between checkpoints
type MemoryGraph struct {
	nodes map[storage.NodeID]*storage.NodeRecord
	edges map[storage.NodeID]*storage.EdgeRecord
	mu    sync.RWMutex
}

// NewMemoryGraph creates a new in-memory graph
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes: make(map[storage.NodeID]*storage.NodeRecord),
		edges: make(map[storage.NodeID]*storage.EdgeRecord),
	}
}

// UpsertNode inserts a node with a visit count of 1, or increments the count
// of an existing one. Attributes of an existing node are never replaced.
// Returns true if the node was inserted.
func (mg *MemoryGraph) UpsertNode(id storage.NodeID, attrs storage.Attributes) bool {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if node, exists := mg.nodes[id]; exists {
		node.VisitCount++
		return false
	}

	mg.nodes[id] = &storage.NodeRecord{
		ID:         id,
		Attributes: slices.Clone(attrs),
		VisitCount: 1,
	}
	return true
}

// UpsertEdges inserts the edge record for id, or increments the count of an
// existing one. Targets of an existing record are immutable.
// Returns true if the record was inserted.
func (mg *MemoryGraph) UpsertEdges(id storage.NodeID, targets []storage.NodeID) bool {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if edge, exists := mg.edges[id]; exists {
		edge.VisitCount++
		return false
	}

	if targets == nil {
		targets = []storage.NodeID{}
	}
	mg.edges[id] = &storage.EdgeRecord{
		SourceID:   id,
		Targets:    slices.Clone(targets),
		VisitCount: 1,
	}
	return true
}

// RemoveNode drops a node inserted by a resolution step that later failed
func (mg *MemoryGraph) RemoveNode(id storage.NodeID) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	delete(mg.nodes, id)
}

// Node returns a copy of the node record
func (mg *MemoryGraph) Node(id storage.NodeID) (storage.NodeRecord, bool) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	if node, exists := mg.nodes[id]; exists {
		return *node, true
	}
	return storage.NodeRecord{}, false
}

// HasNode reports whether id is in the node cache
func (mg *MemoryGraph) HasNode(id storage.NodeID) bool {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	_, ok := mg.nodes[id]
	return ok
}

// HasEdges reports whether id is a key of the edge store
func (mg *MemoryGraph) HasEdges(id storage.NodeID) bool {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	_, ok := mg.edges[id]
	return ok
}

// GetStats returns current graph statistics
func (mg *MemoryGraph) GetStats() (nodeCount, edgeCount int) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	for _, e := range mg.edges {
		edgeCount += len(e.Targets)
	}
	return len(mg.nodes), edgeCount
}

// Flush copies the working set into snap. The snapshot never shares records
// with the graph, so later upserts cannot leak into a checkpoint being written.
func (mg *MemoryGraph) Flush(snap *storage.Snapshot) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	snap.Nodes = make(map[storage.NodeID]*storage.NodeRecord, len(mg.nodes))
	for id, node := range mg.nodes {
		cp := *node
		snap.Nodes[id] = &cp
	}

	snap.Edges = make(map[storage.NodeID]*storage.EdgeRecord, len(mg.edges))
	for id, edge := range mg.edges {
		cp := *edge
		cp.Targets = slices.Clone(edge.Targets)
		snap.Edges[id] = &cp
	}
}

// LoadFromSnapshot replaces the working set with the records in snap (for resume)
func (mg *MemoryGraph) LoadFromSnapshot(snap *storage.Snapshot) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	mg.nodes = make(map[storage.NodeID]*storage.NodeRecord, len(snap.Nodes))
	for id, node := range snap.Nodes {
		if node == nil {
			continue
		}
		cp := *node
		mg.nodes[id] = &cp
	}

	mg.edges = make(map[storage.NodeID]*storage.EdgeRecord, len(snap.Edges))
	for id, edge := range snap.Edges {
		if edge == nil {
			continue
		}
		cp := *edge
		cp.Targets = slices.Clone(edge.Targets)
		mg.edges[id] = &cp
	}

	logrus.Infof("Loaded %d nodes and %d edge records into memory", len(mg.nodes), len(mg.edges))
}
