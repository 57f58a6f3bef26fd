package entry

import (
	"time"

	"github.com/gridkv/entrycell/offheap"
	"github.com/gridkv/entrycell/version"
)

// SwapEntry is what the swap manager hands back on a read.
// OffHeapHandle is non-nil when the entry was served from the off-heap
// tier rather than from disk-backed swap.
type SwapEntry struct {
	Bytes         []byte
	TypeTag       byte
	Version       version.Version
	TTL           time.Duration
	ExpireTime    int64
	OffHeapHandle *offheap.Handle
	KeyLoaderID   string
	ValueLoaderID string
}

// BatchSwapEntry is the descriptor evict_in_batch hands back so the
// caller can flush many evictions in one swap I/O.
type BatchSwapEntry[K comparable] struct {
	Key        K
	Bytes      []byte
	TypeTag    byte
	Version    version.Version
	TTL        time.Duration
	ExpireTime int64
}

// SwapManager is the swap/off-heap tier collaborator.
type SwapManager[K comparable, V any] interface {
	Read(key K, peekOnly, includeOffHeap, includeSwap bool) (*SwapEntry, error)
	ReadAndRemove(key K) (*SwapEntry, error)
	ReadOffHeapPointer(key K) (*SwapEntry, error)
	Write(key K, bytes []byte, typeTag byte, ver version.Version, ttl time.Duration, expireTime int64, keyLoaderID, valueLoaderID string) error
	Remove(key K) error
	RemoveOffHeap(key K) error
	OffHeapEvictionEnabled() bool
	EnableOffHeapEviction(key K) error
}

// NoopSwapManager never has anything swapped and accepts writes as no-ops.
type NoopSwapManager[K comparable, V any] struct{}

func (NoopSwapManager[K, V]) Read(K, bool, bool, bool) (*SwapEntry, error)        { return nil, nil }
func (NoopSwapManager[K, V]) ReadAndRemove(K) (*SwapEntry, error)                  { return nil, nil }
func (NoopSwapManager[K, V]) ReadOffHeapPointer(K) (*SwapEntry, error)             { return nil, nil }
func (NoopSwapManager[K, V]) Write(K, []byte, byte, version.Version, time.Duration, int64, string, string) error {
	return nil
}
func (NoopSwapManager[K, V]) Remove(K) error                  { return nil }
func (NoopSwapManager[K, V]) RemoveOffHeap(K) error            { return nil }
func (NoopSwapManager[K, V]) OffHeapEvictionEnabled() bool     { return false }
func (NoopSwapManager[K, V]) EnableOffHeapEviction(K) error    { return nil }

var _ SwapManager[string, string] = NoopSwapManager[string, string]{}
