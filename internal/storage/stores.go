package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Object names, one per durable entity
const (
	ObjectCurrentFrontier = "frontier/current"
	ObjectNextFrontier    = "frontier/next"
	ObjectLayerPrefix     = "frontier/layer/"
	ObjectNodes           = "nodes"
	ObjectEdges           = "edges"
	ObjectQuarantine      = "quarantine"
	ObjectDepth           = "depth"
	ObjectLayerIndex      = "frontier/layers"
)

// loadObject decodes the named object into v. A missing object leaves v
// untouched and reports false.
func loadObject(ctx context.Context, b Backend, name string, v any) (bool, error) {
	data, err := b.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, storageErr(fmt.Sprintf("decode %s", name), err)
	}
	return true, nil
}

func saveObject(ctx context.Context, w Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return storageErr(fmt.Sprintf("encode %s", name), err)
	}
	return w.Put(ctx, name, data)
}

// FrontierStore persists one frontier under a fixed name
type FrontierStore struct {
	backend Backend
	name    string
}

// NewFrontierStore returns a store for the named frontier
func NewFrontierStore(b Backend, name string) *FrontierStore {
	return &FrontierStore{backend: b, name: name}
}

// Load returns the stored frontier, or an empty one
func (s *FrontierStore) Load(ctx context.Context) ([]NodeID, error) {
	ids := make([]NodeID, 0)
	if _, err := loadObject(ctx, s.backend, s.name, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = make([]NodeID, 0)
	}
	return ids, nil
}

// Save writes the frontier through w
func (s *FrontierStore) Save(ctx context.Context, w Writer, ids []NodeID) error {
	if ids == nil {
		ids = []NodeID{}
	}
	return saveObject(ctx, w, s.name, ids)
}

// LayerStore persists the frontier recorded for each depth on advance
type LayerStore struct {
	backend Backend
}

// NewLayerStore returns the per-depth frontier history store
func NewLayerStore(b Backend) *LayerStore {
	return &LayerStore{backend: b}
}

// LayerName is the object holding the frontier recorded at depth
func LayerName(depth int) string {
	return ObjectLayerPrefix + strconv.Itoa(depth)
}

// Load returns every recorded layer keyed by depth
func (s *LayerStore) Load(ctx context.Context) (map[int][]NodeID, error) {
	layers := make(map[int][]NodeID)

	var depths []int
	if _, err := loadObject(ctx, s.backend, ObjectLayerIndex, &depths); err != nil {
		return nil, err
	}
	for _, d := range depths {
		ids := make([]NodeID, 0)
		if _, err := loadObject(ctx, s.backend, LayerName(d), &ids); err != nil {
			return nil, err
		}
		if ids == nil {
			ids = make([]NodeID, 0)
		}
		layers[d] = ids
	}
	return layers, nil
}

// Save writes every layer plus the index of recorded depths
func (s *LayerStore) Save(ctx context.Context, w Writer, layers map[int][]NodeID) error {
	depths := make([]int, 0, len(layers))
	for d, ids := range layers {
		if err := saveObject(ctx, w, LayerName(d), ids); err != nil {
			return err
		}
		depths = append(depths, d)
	}
	sort.Ints(depths)
	return saveObject(ctx, w, ObjectLayerIndex, depths)
}

// NodeStore persists the node cache
type NodeStore struct {
	backend Backend
}

// NewNodeStore returns the node cache store
func NewNodeStore(b Backend) *NodeStore {
	return &NodeStore{backend: b}
}

// Load returns every stored node record
func (s *NodeStore) Load(ctx context.Context) (map[NodeID]*NodeRecord, error) {
	nodes := make(map[NodeID]*NodeRecord)
	if _, err := loadObject(ctx, s.backend, ObjectNodes, &nodes); err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = make(map[NodeID]*NodeRecord)
	}
	return nodes, nil
}

// Save writes the node records through w
func (s *NodeStore) Save(ctx context.Context, w Writer, nodes map[NodeID]*NodeRecord) error {
	return saveObject(ctx, w, ObjectNodes, nodes)
}

// EdgeStore persists the discovered edges
type EdgeStore struct {
	backend Backend
}

// NewEdgeStore returns the edge store
func NewEdgeStore(b Backend) *EdgeStore {
	return &EdgeStore{backend: b}
}

// Load returns every stored edge record
func (s *EdgeStore) Load(ctx context.Context) (map[NodeID]*EdgeRecord, error) {
	edges := make(map[NodeID]*EdgeRecord)
	if _, err := loadObject(ctx, s.backend, ObjectEdges, &edges); err != nil {
		return nil, err
	}
	if edges == nil {
		edges = make(map[NodeID]*EdgeRecord)
	}
	return edges, nil
}

// Save writes the edge records through w
func (s *EdgeStore) Save(ctx context.Context, w Writer, edges map[NodeID]*EdgeRecord) error {
	return saveObject(ctx, w, ObjectEdges, edges)
}

// ErrorStore persists the quarantine ledger
type ErrorStore struct {
	backend Backend
}

// NewErrorStore returns the error ledger store
func NewErrorStore(b Backend) *ErrorStore {
	return &ErrorStore{backend: b}
}

// Load returns the quarantined ids with their reasons
func (s *ErrorStore) Load(ctx context.Context) (map[NodeID]Quarantine, error) {
	entries := make([]Quarantine, 0)
	if _, err := loadObject(ctx, s.backend, ObjectQuarantine, &entries); err != nil {
		return nil, err
	}
	set := make(map[NodeID]Quarantine, len(entries))
	for _, q := range entries {
		set[q.ID] = q
	}
	return set, nil
}

// Save writes the ledger sorted by id so equal sets encode identically
func (s *ErrorStore) Save(ctx context.Context, w Writer, set map[NodeID]Quarantine) error {
	entries := make([]Quarantine, 0, len(set))
	for _, q := range set {
		entries = append(entries, q)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return saveObject(ctx, w, ObjectQuarantine, entries)
}

// DepthStore persists the depth counter. Its presence marks a checkpoint.
type DepthStore struct {
	backend Backend
}

// NewDepthStore returns the depth counter store
func NewDepthStore(b Backend) *DepthStore {
	return &DepthStore{backend: b}
}

// Load returns the counter and whether one was ever saved
func (s *DepthStore) Load(ctx context.Context) (DepthCounter, bool, error) {
	var d DepthCounter
	found, err := loadObject(ctx, s.backend, ObjectDepth, &d)
	if err != nil {
		return DepthCounter{}, false, err
	}
	return d, found, nil
}

// Save writes the counter through w
func (s *DepthStore) Save(ctx context.Context, w Writer, d DepthCounter) error {
	return saveObject(ctx, w, ObjectDepth, d)
}
