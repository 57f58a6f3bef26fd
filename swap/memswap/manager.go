// Package memswap implements the swap/off-heap-tier collaborator as an
// in-memory tier backed by xsync's lock-free MapOf, the obvious choice
// when the "swap" tier is really just a second in-process map a promoted
// cell falls back to rather than genuine disk-backed swap.
package memswap

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sugawarayuuta/sonnet"

	"github.com/gridkv/entrycell/entry"
	"github.com/gridkv/entrycell/version"
)

// Manager is an entry.SwapManager holding swapped-out entries in an
// xsync.MapOf keyed by the JSON-marshaled key text.
type Manager[K comparable, V any] struct {
	m                    *xsync.MapOf[string, entry.SwapEntry]
	offHeapEvictionOn    bool
}

// NewManager constructs an empty Manager.
func NewManager[K comparable, V any]() *Manager[K, V] {
	return &Manager[K, V]{m: xsync.NewMapOf[string, entry.SwapEntry]()}
}

func keyText[K any](key K) (string, error) {
	b, err := sonnet.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("memswap: marshal key: %w", err)
	}
	return string(b), nil
}

func (m *Manager[K, V]) Read(key K, peekOnly, includeOffHeap, includeSwap bool) (*entry.SwapEntry, error) {
	kt, err := keyText(key)
	if err != nil {
		return nil, err
	}
	se, ok := m.m.Load(kt)
	if !ok {
		return nil, nil
	}
	if !peekOnly {
		m.m.Delete(kt)
	}
	out := se
	return &out, nil
}

func (m *Manager[K, V]) ReadAndRemove(key K) (*entry.SwapEntry, error) {
	kt, err := keyText(key)
	if err != nil {
		return nil, err
	}
	se, loaded := m.m.LoadAndDelete(kt)
	if !loaded {
		return nil, nil
	}
	out := se
	return &out, nil
}

func (m *Manager[K, V]) ReadOffHeapPointer(key K) (*entry.SwapEntry, error) {
	kt, err := keyText(key)
	if err != nil {
		return nil, err
	}
	se, ok := m.m.Load(kt)
	if !ok || se.OffHeapHandle == nil {
		return nil, nil
	}
	out := se
	return &out, nil
}

func (m *Manager[K, V]) Write(key K, bytes []byte, typeTag byte, ver version.Version, ttl time.Duration, expireTime int64, keyLoaderID, valueLoaderID string) error {
	kt, err := keyText(key)
	if err != nil {
		return err
	}
	m.m.Store(kt, entry.SwapEntry{
		Bytes: append([]byte(nil), bytes...), TypeTag: typeTag, Version: ver,
		TTL: ttl, ExpireTime: expireTime, KeyLoaderID: keyLoaderID, ValueLoaderID: valueLoaderID,
	})
	return nil
}

func (m *Manager[K, V]) Remove(key K) error {
	kt, err := keyText(key)
	if err != nil {
		return err
	}
	m.m.Delete(kt)
	return nil
}

func (m *Manager[K, V]) RemoveOffHeap(key K) error {
	kt, err := keyText(key)
	if err != nil {
		return err
	}
	se, ok := m.m.Load(kt)
	if !ok || se.OffHeapHandle == nil {
		return nil
	}
	se.OffHeapHandle.Release()
	se.OffHeapHandle = nil
	m.m.Store(kt, se)
	return nil
}

func (m *Manager[K, V]) OffHeapEvictionEnabled() bool { return m.offHeapEvictionOn }

func (m *Manager[K, V]) EnableOffHeapEviction(key K) error {
	m.offHeapEvictionOn = true
	return nil
}

var _ entry.SwapManager[string, string] = (*Manager[string, string])(nil)
