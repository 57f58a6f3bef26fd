package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/sugawarayuuta/sonnet"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// FileStore persists one file per key under dir, replaced atomically on
// every write via natefinch/atomic so a crash mid-write never leaves a
// half-written value readable.
type FileStore[K comparable, V any] struct {
	dir               string
	readThrough       bool
	writeThrough      bool
	loadPreviousValue bool
}

type fileRecord[V any] struct {
	Value      V
	VerOrder   int64
	VerNode    int32
	VerTop     int64
	VerDC      byte
}

// NewFileStore constructs a FileStore rooted at dir, creating it if
// necessary.
func NewFileStore[K comparable, V any](dir string, readThrough, writeThrough bool) (*FileStore[K, V], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}
	return &FileStore[K, V]{dir: dir, readThrough: readThrough, writeThrough: writeThrough}, nil
}

func (s *FileStore[K, V]) pathFor(key K) (string, error) {
	b, err := sonnet.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("store: marshal key: %w", err)
	}
	return filepath.Join(s.dir, hex.EncodeToString(b)+".json"), nil
}

func (s *FileStore[K, V]) LoadFromStore(_ context.Context, _ *tx.Tx, key K) (V, bool, error) {
	var zero V
	path, err := s.pathFor(key)
	if err != nil {
		return zero, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("store: read: %w", err)
	}
	var rec fileRecord[V]
	if err := sonnet.Unmarshal(data, &rec); err != nil {
		return zero, false, fmt.Errorf("store: unmarshal: %w", err)
	}
	return rec.Value, true, nil
}

func (s *FileStore[K, V]) PutToStore(_ context.Context, _ *tx.Tx, key K, val V, ver version.Version) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	rec := fileRecord[V]{Value: val, VerOrder: ver.Order, VerNode: ver.NodeOrder, VerTop: ver.TopologyVersion, VerDC: ver.DataCenterID}
	data, err := sonnet.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store: atomic write: %w", err)
	}
	return nil
}

func (s *FileStore[K, V]) RemoveFromStore(_ context.Context, _ *tx.Tx, key K) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove: %w", err)
	}
	return nil
}

func (s *FileStore[K, V]) IsLocalStore() bool     { return true }
func (s *FileStore[K, V]) ReadThrough() bool      { return s.readThrough }
func (s *FileStore[K, V]) WriteThrough() bool     { return s.writeThrough }
func (s *FileStore[K, V]) LoadPreviousValue() bool { return s.loadPreviousValue }
