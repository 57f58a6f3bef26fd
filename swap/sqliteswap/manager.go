// Package sqliteswap implements the swap/off-heap-tier collaborator as a
// genuine disk-backed swap space, the SQLite table standing in for the
// native "swap space" files the original grid writes evicted pages to.
package sqliteswap

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"

	"github.com/gridkv/entrycell/entry"
	"github.com/gridkv/entrycell/version"
)

// Manager is an entry.SwapManager persisting swapped-out entries to a
// SQLite table via database/sql and the mattn/go-sqlite3 driver.
type Manager[K comparable, V any] struct {
	db                *sql.DB
	table             string
	offHeapEvictionOn bool
}

// NewManager opens (and, if needed, creates) a SQLite-backed swap store
// at dsn.
func NewManager[K comparable, V any](dsn string) (*Manager[K, V], error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqliteswap: open: %w", err)
	}
	m := &Manager[K, V]{db: db, table: "entry_swap"}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + m.table + ` (
		k TEXT PRIMARY KEY,
		bytes BLOB NOT NULL,
		type_tag INTEGER NOT NULL,
		ver_order INTEGER NOT NULL,
		ver_node INTEGER NOT NULL,
		ver_top INTEGER NOT NULL,
		ver_dc INTEGER NOT NULL,
		ttl_ns INTEGER NOT NULL,
		expire_at INTEGER NOT NULL,
		key_loader TEXT NOT NULL DEFAULT '',
		value_loader TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteswap: create table: %w", err)
	}
	return m, nil
}

func (m *Manager[K, V]) keyText(key K) (string, error) {
	b, err := sonnet.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("sqliteswap: marshal key: %w", err)
	}
	return string(b), nil
}

func (m *Manager[K, V]) load(kt string) (*entry.SwapEntry, error) {
	row := m.db.QueryRow(`SELECT bytes, type_tag, ver_order, ver_node, ver_top, ver_dc, ttl_ns, expire_at, key_loader, value_loader
		FROM `+m.table+` WHERE k = ?`, kt)
	var se entry.SwapEntry
	var ttlNS int64
	if err := row.Scan(&se.Bytes, &se.TypeTag, &se.Version.Order, &se.Version.NodeOrder, &se.Version.TopologyVersion,
		&se.Version.DataCenterID, &ttlNS, &se.ExpireTime, &se.KeyLoaderID, &se.ValueLoaderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqliteswap: load: %w", err)
	}
	se.TTL = time.Duration(ttlNS)
	return &se, nil
}

func (m *Manager[K, V]) Read(key K, peekOnly, includeOffHeap, includeSwap bool) (*entry.SwapEntry, error) {
	kt, err := m.keyText(key)
	if err != nil {
		return nil, err
	}
	se, err := m.load(kt)
	if err != nil || se == nil {
		return nil, err
	}
	if !peekOnly {
		if _, err := m.db.Exec(`DELETE FROM `+m.table+` WHERE k = ?`, kt); err != nil {
			return nil, fmt.Errorf("sqliteswap: delete-on-read: %w", err)
		}
	}
	return se, nil
}

func (m *Manager[K, V]) ReadAndRemove(key K) (*entry.SwapEntry, error) {
	return m.Read(key, false, true, true)
}

func (m *Manager[K, V]) ReadOffHeapPointer(key K) (*entry.SwapEntry, error) {
	// This adapter never holds off-heap handles; swapped bytes are
	// always on disk, never pinned in process memory.
	return nil, nil
}

func (m *Manager[K, V]) Write(key K, bytes []byte, typeTag byte, ver version.Version, ttl time.Duration, expireTime int64, keyLoaderID, valueLoaderID string) error {
	kt, err := m.keyText(key)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(`INSERT INTO `+m.table+` (k, bytes, type_tag, ver_order, ver_node, ver_top, ver_dc, ttl_ns, expire_at, key_loader, value_loader)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET bytes = excluded.bytes, type_tag = excluded.type_tag,
			ver_order = excluded.ver_order, ver_node = excluded.ver_node, ver_top = excluded.ver_top,
			ver_dc = excluded.ver_dc, ttl_ns = excluded.ttl_ns, expire_at = excluded.expire_at,
			key_loader = excluded.key_loader, value_loader = excluded.value_loader`,
		kt, bytes, typeTag, ver.Order, ver.NodeOrder, ver.TopologyVersion, ver.DataCenterID,
		int64(ttl), expireTime, keyLoaderID, valueLoaderID)
	if err != nil {
		return fmt.Errorf("sqliteswap: write: %w", err)
	}
	return nil
}

func (m *Manager[K, V]) Remove(key K) error {
	kt, err := m.keyText(key)
	if err != nil {
		return err
	}
	if _, err := m.db.Exec(`DELETE FROM `+m.table+` WHERE k = ?`, kt); err != nil {
		return fmt.Errorf("sqliteswap: remove: %w", err)
	}
	return nil
}

func (m *Manager[K, V]) RemoveOffHeap(key K) error { return nil }

func (m *Manager[K, V]) OffHeapEvictionEnabled() bool { return m.offHeapEvictionOn }

func (m *Manager[K, V]) EnableOffHeapEviction(key K) error {
	m.offHeapEvictionOn = true
	return nil
}

// Close releases the underlying database handle.
func (m *Manager[K, V]) Close() error { return m.db.Close() }

var _ entry.SwapManager[string, string] = (*Manager[string, string])(nil)
