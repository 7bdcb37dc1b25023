package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps named objects in a single SQLite table
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at dbPath and initializes the schema
func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, storageErr("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, storageErr("open database", err)
	}

	// One writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageErr("connect to database", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, storageErr("initialize schema", err)
	}

	return s, nil
}

// initSchema creates the objects table if it doesn't exist
func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

const upsertObject = `
	INSERT INTO objects (name, data, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
		data = excluded.data,
		updated_at = CURRENT_TIMESTAMP
`

// Get returns the object stored under name
func (s *SQLite) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM objects WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr(fmt.Sprintf("get %s", name), err)
	}
	return data, nil
}

// Put writes a single object outside of any batch
func (s *SQLite) Put(ctx context.Context, name string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertObject, name, data); err != nil {
		return storageErr(fmt.Sprintf("put %s", name), err)
	}
	return nil
}

// Update runs fn inside one SQL transaction
func (s *SQLite) Update(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	if err := fn(sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t sqliteTx) Put(ctx context.Context, name string, data []byte) error {
	if _, err := t.tx.ExecContext(ctx, upsertObject, name, data); err != nil {
		return storageErr(fmt.Sprintf("put %s", name), err)
	}
	return nil
}
