// Package entry implements the cache entry cell: the per-key state
// machine that mediates every read, write, transform, remove, invalidate,
// expiration, eviction, swap, and version-reconciliation event for one
// logical key in an in-memory data grid.
package entry

import (
	"sync"
	"time"

	"github.com/gridkv/entrycell/version"
)

// Cell is the concrete entry cell. It is generic over the key and value
// types, following a generic node/shard/cache style. The three variant
// families (local/DHT/near) are not implemented as a class hierarchy —
// they are modeled as a small Variant value consulted only through the
// narrow Variant interface, never via virtual dispatch in the hot path.
type Cell[K comparable, V any] struct {
	cctx *Context[K, V]

	// next0, next1 are intrusive bucket-chain links written only by the
	// owning map; the core never reads or writes them.
	next0, next1 any

	mu sync.Mutex

	// ---- guarded by mu ----
	key               K
	hash              uint32
	startVersionOrder int64
	ver               version.Version
	slot              valueSlot[V]
	ext               extras
	deleted           bool
	unswapped         bool
	lastRemoveVer     version.Version

	variant Variant[K, V]
}

// Variant supplies the handful of operations that distinguish a local,
// DHT, or near-cache cell.
type Variant[K comparable, V any] interface {
	IsDHT() bool
	IsNear() bool
	IsReplicated() bool
	Partition() int32
	HasReaders(c *Cell[K, V]) bool
	ClearReaders(c *Cell[K, V])
	RecordNodeID(nodeID string)
	OnInvalidate()
}

// LocalVariant is the default Variant: a plain local cache with no
// readers to track and no partitioning.
type LocalVariant[K comparable, V any] struct{}

func (LocalVariant[K, V]) IsDHT() bool                       { return false }
func (LocalVariant[K, V]) IsNear() bool                      { return false }
func (LocalVariant[K, V]) IsReplicated() bool                { return false }
func (LocalVariant[K, V]) Partition() int32                  { return 0 }
func (LocalVariant[K, V]) HasReaders(*Cell[K, V]) bool        { return false }
func (LocalVariant[K, V]) ClearReaders(*Cell[K, V])           {}
func (LocalVariant[K, V]) RecordNodeID(string)                {}
func (LocalVariant[K, V]) OnInvalidate()                      {}

// New constructs an entry cell. A fresh version is assigned from
// cctx.Versions; if hasInitial is true, the initial value is installed
// under that version (this is distinct from InitialValue, which only
// installs into a cell that is still new).
func New[K comparable, V any](cctx *Context[K, V], key K, hash uint32, hasInitial bool, initial V, ttl time.Duration) *Cell[K, V] {
	if cctx.Variant == nil {
		cctx.Variant = LocalVariant[K, V]{}
	}
	ver := cctx.Versions.Next()
	c := &Cell[K, V]{
		cctx:              cctx,
		key:               key,
		hash:              hash,
		startVersionOrder: ver.Order,
		ver:               ver,
		variant:           cctx.Variant,
	}
	if hasInitial {
		c.slot.setHeap(initial)
		if ttl > 0 {
			expire := cctx.now() + int64(ttl)
			c.ext = narrow(extrasFields{ttl: ttl, expireTime: expire})
			if cctx.EagerTTL {
				cctx.TTL.AddTrackedEntry(c)
			}
		}
	}
	return c
}

// Key returns the cell's immutable key.
func (c *Cell[K, V]) Key() K { return c.key }

// Hash returns the cell's precomputed key hash.
func (c *Cell[K, V]) Hash() uint32 { return c.hash }

// Next0/Next1/SetNext0/SetNext1 expose the intrusive bucket-chain links
// for the owning map; callers other than the owning map
// must not use these.
func (c *Cell[K, V]) Next0() any        { return c.next0 }
func (c *Cell[K, V]) SetNext0(n any)    { c.next0 = n }
func (c *Cell[K, V]) Next1() any        { return c.next1 }
func (c *Cell[K, V]) SetNext1(n any)    { c.next1 = n }

// lock/unlock are the cell's intrinsic monitor. They are
// not exported: every externally visible operation acquires the lock
// itself and never leaves it held across a return.
func (c *Cell[K, V]) lock()   { c.mu.Lock() }
func (c *Cell[K, V]) unlock() { c.mu.Unlock() }

// MemorySize estimates the cell's in-memory footprint:
// base overhead + extras size + key bytes + max(1, value bytes).
func (c *Cell[K, V]) MemorySize() (int, error) {
	c.lock()
	defer c.unlock()
	return c.memorySizeLocked()
}

const baseEntryOverhead = 77

func (c *Cell[K, V]) memorySizeLocked() (int, error) {
	keyBytes, err := marshal(c.key)
	if err != nil {
		return 0, err
	}
	valBytes := 1
	if c.slot.hasValue() {
		p, err := c.slot.valueBytesUnlocked(c.cctx.Allocator)
		if err == nil && len(p.bytes) > 1 {
			valBytes = len(p.bytes)
		}
	}
	return baseEntryOverhead + extrasSize(c.ext) + len(keyBytes.bytes) + valBytes, nil
}

// extrasSize estimates the on-heap footprint of the extras shape, used by
// MemorySize. This is a rough accounting, not an exact allocator count.
func extrasSize(e extras) int {
	if e == nil {
		return 0
	}
	f := e.fields()
	n := 0
	if f.hasAttrs() {
		n += 16 * len(f.attrs)
	}
	if f.hasMvcc() {
		n += 32
	}
	if f.hasObsolete() {
		n += 24
	}
	if f.hasTTL() {
		n += 16
	}
	return n
}
