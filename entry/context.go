package entry

import (
	"github.com/gridkv/entrycell/offheap"
	"github.com/gridkv/entrycell/version"
)

// Context bundles the collaborators and configuration every cell in one
// cache shares. It is analogous to a cache.Options[K,V], generalized from
// a single cache-wide struct into a set of narrow interfaces the core
// consumes one at a time.
type Context[K comparable, V any] struct {
	// NodeOrder and DataCenterID identify "this" node for version
	// minting and the "is new" check.
	NodeOrder    int32
	DataCenterID byte

	Versions  version.Source
	Store     Store[K, V]
	Swap      SwapManager[K, V]
	Allocator offheap.Allocator

	EventBus   EventBus[K, V]
	CQ         ContinuousQueryNotifier[K, V]
	Intercept  Interceptor[K, V]
	DR         DRReplicator[K, V]
	Conflict   ConflictResolver[K, V]
	TTL        TTLTracker[K, V]
	Index      IndexManager[K, V]
	Touch      TouchNotifier[K, V]
	Logger     Logger
	Metrics    Metrics
	SizeAcct   SizeAccountant
	Clock      Clock

	// Expiry drives getExpiryForAccess/getExpiryForCreate/getExpiryForUpdate.
	// Nil means "no policy": TTLs are whatever the caller passes explicitly
	// and access never refreshes them.
	Expiry ExpiryPolicy

	// OffHeapValuesOnly forces every set_value to place bytes off-heap.
	// OffHeapTiered additionally allows values to be
	// promoted from off-heap into the heap slot without immediately
	// releasing the off-heap copy (transient dual-presence).
	OffHeapValuesOnly bool
	OffHeapTiered     bool

	// DeferredDelete enables the tombstone-then-sweep removal lifecycle.
	DeferredDelete bool

	// EagerTTL registers live cells with TTL in TTLTracker as soon as
	// their expire time is set.
	EagerTTL bool

	// IsBlockKeyFunc identifies IGFS data-cache block keys for the
	// size-accounting special case. Nil means "never".
	IsBlockKeyFunc func(key K) bool

	// ConflictEnabled gates the conflict-resolution branch of innerUpdate.
	ConflictEnabled bool

	// Variant distinguishes local/DHT/near cells. Defaults
	// to LocalVariant when nil.
	Variant Variant[K, V]
}

// DefaultContext returns a Context wired entirely to no-op collaborators
// plus a LocalSource version service and an unbounded offheap.Arena —
// suitable for unit tests and as a starting point for real wiring.
func DefaultContext[K comparable, V any]() *Context[K, V] {
	return &Context[K, V]{
		NodeOrder: 1,
		Versions:  version.NewLocalSource(1, 0),
		Store:     NoopStore[K, V]{},
		Swap:      NoopSwapManager[K, V]{},
		Allocator: offheap.NewArena(0),
		EventBus:  NoopEventBus[K, V]{},
		CQ:        NoopCQNotifier[K, V]{},
		Intercept: NoopInterceptor[K, V]{},
		DR:        NoopDRReplicator[K, V]{},
		TTL:       NoopTTLTracker[K, V]{},
		Index:     NoopIndexManager[K, V]{},
		Touch:     NoopTouchNotifier[K, V]{},
		Logger:    NoopLogger{},
		Metrics:   NoopMetrics{},
		Clock:     SystemClock,
	}
}

func (c *Context[K, V]) isBlockKey(key K) bool {
	return c.IsBlockKeyFunc != nil && c.IsBlockKeyFunc(key)
}

// reportSizeDeltaLocked tells the configured SizeAccountant about the
// serialized-size delta of a set_value on a block-keyed entry — the IGFS
// data-cache special case. Keys IsBlockKeyFunc doesn't claim are ignored.
func (c *Cell[K, V]) reportSizeDeltaLocked(oldVal V, hadOld bool, newVal V, hasNew bool) {
	if c.cctx.SizeAcct == nil || !c.cctx.isBlockKey(c.key) {
		return
	}
	var oldSize, newSize int
	if hadOld {
		if p, err := marshal(oldVal); err == nil {
			oldSize = len(p.bytes)
		}
	}
	if hasNew {
		if p, err := marshal(newVal); err == nil {
			newSize = len(p.bytes)
		}
	}
	if delta := int64(newSize - oldSize); delta != 0 {
		c.cctx.SizeAcct.AdjustSize(delta)
	}
}

func (c *Context[K, V]) now() int64 {
	if c.Clock != nil {
		return c.Clock.NowUnixNano()
	}
	return SystemClock.NowUnixNano()
}
