package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Checkpointer saves and restores the full crawl state through the typed
// stores. A save is one backend transaction, so a crash leaves either the new
// snapshot or the previous one.
type Checkpointer struct {
	current *FrontierStore
	next    *FrontierStore
	layers  *LayerStore
	nodes   *NodeStore
	edges   *EdgeStore
	errors  *ErrorStore
	depth   *DepthStore
	backend Backend
}

// NewCheckpointer wires every store to the backend
func NewCheckpointer(b Backend) *Checkpointer {
	return &Checkpointer{
		current: NewFrontierStore(b, ObjectCurrentFrontier),
		next:    NewFrontierStore(b, ObjectNextFrontier),
		layers:  NewLayerStore(b),
		nodes:   NewNodeStore(b),
		edges:   NewEdgeStore(b),
		errors:  NewErrorStore(b),
		depth:   NewDepthStore(b),
		backend: b,
	}
}

// Save persists the snapshot atomically
func (c *Checkpointer) Save(ctx context.Context, snap *Snapshot) error {
	start := time.Now()

	err := c.backend.Update(ctx, func(w Writer) error {
		if err := c.current.Save(ctx, w, snap.Current); err != nil {
			return err
		}
		if err := c.next.Save(ctx, w, snap.Next); err != nil {
			return err
		}
		if err := c.layers.Save(ctx, w, snap.Layers); err != nil {
			return err
		}
		if err := c.nodes.Save(ctx, w, snap.Nodes); err != nil {
			return err
		}
		if err := c.edges.Save(ctx, w, snap.Edges); err != nil {
			return err
		}
		if err := c.errors.Save(ctx, w, snap.Quarantine); err != nil {
			return err
		}
		return c.depth.Save(ctx, w, snap.Depth)
	})
	if err != nil {
		return err
	}

	logrus.Debugf("Checkpoint saved: depth=%d/%d, frontier=%d+%d, nodes=%d, edges=%d, quarantined=%d in %v",
		snap.Depth.Current, snap.Depth.Target, len(snap.Current), len(snap.Next),
		len(snap.Nodes), len(snap.Edges), len(snap.Quarantine), time.Since(start))
	return nil
}

// Load restores the last snapshot. The boolean is false when no checkpoint
// was ever written; the snapshot is then empty.
func (c *Checkpointer) Load(ctx context.Context) (*Snapshot, bool, error) {
	snap := NewSnapshot()

	depth, found, err := c.depth.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return snap, false, nil
	}
	snap.Depth = depth

	if snap.Current, err = c.current.Load(ctx); err != nil {
		return nil, false, err
	}
	if snap.Next, err = c.next.Load(ctx); err != nil {
		return nil, false, err
	}
	if snap.Layers, err = c.layers.Load(ctx); err != nil {
		return nil, false, err
	}
	if snap.Nodes, err = c.nodes.Load(ctx); err != nil {
		return nil, false, err
	}
	if snap.Edges, err = c.edges.Load(ctx); err != nil {
		return nil, false, err
	}
	if snap.Quarantine, err = c.errors.Load(ctx); err != nil {
		return nil, false, err
	}

	return snap, true, nil
}
