package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when no object has the requested name
	ErrNotFound = errors.New("object not found")

	// ErrStorage wraps every failure to read or persist durable state.
	// Callers treat it as fatal: continuing without durability breaks resume.
	ErrStorage = errors.New("storage failure")
)

// Backend kinds accepted by Open
const (
	KindSQLite = "sqlite"
	KindBadger = "badger"
)

// Writer puts named objects
type Writer interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Backend stores one named object per durable entity
type Backend interface {
	Writer

	// Get returns ErrNotFound if the object was never written
	Get(ctx context.Context, name string) ([]byte, error)

	// Update runs fn in a single transaction. Either every Put made through
	// the writer is durable afterwards or none is.
	Update(ctx context.Context, fn func(w Writer) error) error

	Close() error
}

// Open opens the backend of the given kind at path
func Open(kind, path string) (Backend, error) {
	switch kind {
	case KindSQLite, "":
		s, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindBadger:
		b, err := NewBadger(BadgerConfig{Path: path, SyncWrites: true})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
