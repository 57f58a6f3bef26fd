// Package store implements the persistent-store collaborator backing
// read-through/write-through. Two adapters are provided: SQLiteStore for
// a real embedded database, and FileStore (in file.go) for a
// one-file-per-key durable fallback.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// SQLiteStore persists keys/values as JSON-encoded blobs in a single
// SQLite table, using database/sql with the mattn/go-sqlite3 driver.
type SQLiteStore[K comparable, V any] struct {
	db                 *sql.DB
	table              string
	readThrough        bool
	writeThrough       bool
	loadPreviousValue  bool
}

// OpenSQLiteStore opens (and, if needed, creates) a SQLite-backed store
// at dsn ("file:path.db?_journal=WAL" or ":memory:").
func OpenSQLiteStore[K comparable, V any](dsn string, readThrough, writeThrough bool) (*SQLiteStore[K, V], error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLiteStore[K, V]{db: db, table: "entry_store", readThrough: readThrough, writeThrough: writeThrough}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		k TEXT PRIMARY KEY,
		v BLOB NOT NULL,
		ver_order INTEGER NOT NULL,
		ver_node INTEGER NOT NULL,
		ver_top INTEGER NOT NULL,
		ver_dc INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[K, V]) keyText(key K) (string, error) {
	b, err := sonnet.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("store: marshal key: %w", err)
	}
	return string(b), nil
}

func (s *SQLiteStore[K, V]) LoadFromStore(ctx context.Context, _ *tx.Tx, key K) (V, bool, error) {
	var zero V
	kt, err := s.keyText(key)
	if err != nil {
		return zero, false, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT v FROM `+s.table+` WHERE k = ?`, kt)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("store: load: %w", err)
	}
	var v V
	if err := sonnet.Unmarshal(blob, &v); err != nil {
		return zero, false, fmt.Errorf("store: unmarshal value: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteStore[K, V]) PutToStore(ctx context.Context, _ *tx.Tx, key K, val V, ver version.Version) error {
	kt, err := s.keyText(key)
	if err != nil {
		return err
	}
	blob, err := sonnet.Marshal(val)
	if err != nil {
		return fmt.Errorf("store: marshal value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table+` (k, v, ver_order, ver_node, ver_top, ver_dc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, ver_order = excluded.ver_order,
			ver_node = excluded.ver_node, ver_top = excluded.ver_top, ver_dc = excluded.ver_dc`,
		kt, blob, ver.Order, ver.NodeOrder, ver.TopologyVersion, ver.DataCenterID)
	if err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	return nil
}

func (s *SQLiteStore[K, V]) RemoveFromStore(ctx context.Context, _ *tx.Tx, key K) error {
	kt, err := s.keyText(key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE k = ?`, kt); err != nil {
		return fmt.Errorf("store: remove: %w", err)
	}
	return nil
}

func (s *SQLiteStore[K, V]) IsLocalStore() bool            { return true }
func (s *SQLiteStore[K, V]) ReadThrough() bool              { return s.readThrough }
func (s *SQLiteStore[K, V]) WriteThrough() bool             { return s.writeThrough }
func (s *SQLiteStore[K, V]) LoadPreviousValue() bool        { return s.loadPreviousValue }

// Close releases the underlying database handle.
func (s *SQLiteStore[K, V]) Close() error { return s.db.Close() }
