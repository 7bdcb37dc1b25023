package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// BadgerConfig configures the embedded key-value backend
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM; used by tests
	InMemory bool

	// SyncWrites fsyncs every commit
	SyncWrites bool
}

// Badger keeps named objects as keys in an embedded BadgerDB
type Badger struct {
	db *badger.DB
}

// NewBadger opens the database described by cfg
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, storageErr("open badger", errors.New("path is required for persistent database"))
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, storageErr("create database directory", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logrus.StandardLogger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storageErr("open badger", err)
	}

	return &Badger{db: db}, nil
}

// badgerLogger routes badger's internal logging through logrus at debug level
// for everything but errors and warnings.
type badgerLogger struct {
	l *logrus.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{})   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...interface{})    { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...interface{})   { b.l.Tracef(format, args...) }

// Get returns the object stored under name
func (b *Badger) Get(_ context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr(fmt.Sprintf("get %s", name), err)
	}
	return data, nil
}

// Put writes a single object in its own transaction
func (b *Badger) Put(_ context.Context, name string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), data)
	})
	if err != nil {
		return storageErr(fmt.Sprintf("put %s", name), err)
	}
	return nil
}

// Update runs fn inside one badger transaction
func (b *Badger) Update(ctx context.Context, fn func(w Writer) error) error {
	var fnErr error
	err := b.db.Update(func(txn *badger.Txn) error {
		fnErr = fn(badgerTxn{txn: txn})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// Close closes the database
func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t badgerTxn) Put(_ context.Context, name string, data []byte) error {
	if err := t.txn.Set([]byte(name), data); err != nil {
		return storageErr(fmt.Sprintf("put %s", name), err)
	}
	return nil
}
