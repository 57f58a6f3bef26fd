package entry

import (
	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// PeekMode is the closed enumeration of peek sources.
type PeekMode int

const (
	PeekGlobal PeekMode = iota
	PeekNearOnly
	PeekPartitionedOnly
	PeekTx
	PeekSmart
	PeekSwap
	PeekDB
)

// Filter is a fail-fast predicate consulted by peek and by the atomic
// update path. A nil Filter always passes.
type Filter[K comparable, V any] func(e InvokeEntry[K, V]) bool

func passes[K comparable, V any](f Filter[K, V], e InvokeEntry[K, V]) bool {
	return f == nil || f(e)
}

// peekView is the InvokeEntry adapter handed to filters and interceptors
// during peek/update; it carries a value snapshot rather than a live
// reference back into the cell.
type peekView[K comparable, V any] struct {
	key      K
	val      V
	hasVal   bool
}

func (p peekView[K, V]) Key() K            { return p.key }
func (p peekView[K, V]) Value() (V, bool)  { return p.val, p.hasVal }

// Peek reads the cell's value through the given mode without mutating it,
// except that a GLOBAL peek on a detected-expired cell may mark it
// obsolete and report that the owning map should remove it.
func (c *Cell[K, V]) Peek(mode PeekMode, t *tx.Tx, f Filter[K, V]) (val V, ok bool, removeFromMap bool, err error) {
	switch mode {
	case PeekTx:
		return c.peekTx(t, f)
	case PeekSmart:
		if t != nil && t.State() == tx.StateActive {
			return c.peekTx(t, f)
		}
		return c.peekGlobal(f)
	case PeekSwap:
		return c.peekSwap(f)
	case PeekDB:
		return c.peekDB(f)
	default: // GLOBAL, NEAR_ONLY, PARTITIONED_ONLY — the core treats these alike
		return c.peekGlobal(f)
	}
}

func (c *Cell[K, V]) peekTx(t *tx.Tx, f Filter[K, V]) (V, bool, bool, error) {
	var zero V
	if t == nil {
		return zero, false, false, nil
	}
	raw, ok := t.PeekWrite(c.key)
	if !ok {
		return zero, false, false, nil
	}
	v := raw.(V)
	if !passes(f, peekView[K, V]{c.key, v, true}) {
		return zero, false, false, ErrFilterFailed
	}
	return v, true, false, nil
}

// peekGlobal honors obsolescence and reports to the caller whether the
// cell should now be unlinked from the owning map. It makes a single
// attempt: an expired cell is marked obsolete and reported absent, with
// no retry.
func (c *Cell[K, V]) peekGlobal(f Filter[K, V]) (V, bool, bool, error) {
	c.lock()
	defer c.unlock()
	var zero V

	if err := c.checkObsoleteLocked(); err != nil {
		return zero, false, false, err
	}
	if c.expiredLocked() {
		obsoleted := c.markObsolete0(c.ver)
		return zero, false, obsoleted, nil
	}
	if !c.slot.hasValue() {
		return zero, false, false, nil
	}
	v, err := c.snapshotValueLocked()
	if err != nil {
		return zero, false, false, err
	}
	if !passes(f, peekView[K, V]{c.key, v, true}) {
		return zero, false, false, ErrFilterFailed
	}
	return v, true, false, nil
}

func (c *Cell[K, V]) peekSwap(f Filter[K, V]) (V, bool, bool, error) {
	var zero V
	se, err := c.cctx.Swap.Read(c.key, true, true, true)
	if err != nil {
		return zero, false, false, &ErrStore{Err: err}
	}
	if se == nil {
		return zero, false, false, nil
	}
	v, err := unmarshal[V](payload{bytes: se.Bytes, typeTag: se.TypeTag})
	if err != nil {
		return zero, false, false, err
	}
	if !passes(f, peekView[K, V]{c.key, v, true}) {
		return zero, false, false, ErrFilterFailed
	}
	return v, true, false, nil
}

func (c *Cell[K, V]) peekDB(f Filter[K, V]) (V, bool, bool, error) {
	var zero V
	v, ok, err := c.cctx.Store.LoadFromStore(bgContext(), nil, c.key)
	if err != nil {
		return zero, false, false, &ErrStore{Err: err}
	}
	if !ok {
		return zero, false, false, nil
	}
	if !passes(f, peekView[K, V]{c.key, v, true}) {
		return zero, false, false, ErrFilterFailed
	}
	return v, true, false, nil
}

// snapshotValueLocked materializes the current value, rehydrating from
// off-heap if needed. Caller holds the lock.
func (c *Cell[K, V]) snapshotValueLocked() (V, error) {
	var zero V
	switch c.slot.kind {
	case valueHeap:
		return c.slot.heap, nil
	case valueOffHeap:
		b, tag, err := c.cctx.Allocator.Get(c.slot.handle)
		if err != nil {
			return zero, &ErrOffHeapCodec{Err: err}
		}
		return unmarshal[V](payload{bytes: b, typeTag: tag})
	default:
		return zero, nil
	}
}

// WrapResult is the externally visible key/value record produced by Wrap.
type WrapResult[K comparable, V any] struct {
	Key      K
	Value    V
	HasValue bool
}

// Wrap snapshots the cell to an externally visible key/value record,
// consulting the transaction's write-set first if one is active.
func (c *Cell[K, V]) Wrap(t *tx.Tx) (WrapResult[K, V], error) {
	if t != nil {
		if raw, ok := t.PeekWrite(c.key); ok {
			return WrapResult[K, V]{Key: c.key, Value: raw.(V), HasValue: true}, nil
		}
	}
	v, ok, _, err := c.peekGlobal(nil)
	if err != nil && err != ErrRemoved {
		return WrapResult[K, V]{}, err
	}
	return WrapResult[K, V]{Key: c.key, Value: v, HasValue: ok}, nil
}

// LazyValue defers materialization of a cell's value until Get is called,
// at which point it re-peeks rather than returning a stale snapshot.
type LazyValue[K comparable, V any] struct {
	cell *Cell[K, V]
	tx   *tx.Tx
}

// WrapLazyValue builds a LazyValue view over the cell.
func (c *Cell[K, V]) WrapLazyValue(t *tx.Tx) LazyValue[K, V] {
	return LazyValue[K, V]{cell: c, tx: t}
}

// Get re-peeks the underlying cell and returns the current value.
func (l LazyValue[K, V]) Get() (V, bool, error) {
	v, ok, _, err := l.cell.Peek(PeekSmart, l.tx, nil)
	if err == ErrRemoved {
		var zero V
		return zero, false, nil
	}
	return v, ok, err
}

// EvictionView is the façade the eviction policy consults: it must never
// trigger read-through, off-heap promotion, or swap.
type EvictionView[K comparable, V any] struct {
	Key  K
	cell *Cell[K, V]
}

// WrapEviction builds the façade the eviction policy consults.
func (c *Cell[K, V]) WrapEviction() EvictionView[K, V] {
	return EvictionView[K, V]{Key: c.key, cell: c}
}

// MemorySize proxies to the cell's MemorySize for the eviction policy.
func (e EvictionView[K, V]) MemorySize() (int, error) { return e.cell.MemorySize() }

// VersionedView is the façade for version-aware user code.
type VersionedView[K comparable, V any] struct {
	Key     K
	Value   V
	Version version.Version
}

// WrapVersioned snapshots key/value/version without unswapping.
func (c *Cell[K, V]) WrapVersioned() (VersionedView[K, V], error) {
	c.lock()
	defer c.unlock()
	if err := c.checkObsoleteLocked(); err != nil {
		return VersionedView[K, V]{}, err
	}
	v, err := c.snapshotValueLocked()
	if err != nil {
		return VersionedView[K, V]{}, err
	}
	return VersionedView[K, V]{Key: c.key, Value: v, Version: c.ver}, nil
}

// VersionedEntryResult is the full record returned by VersionedEntry.
type VersionedEntryResult[K comparable, V any] struct {
	Key         K
	Value       V
	HasValue    bool
	TTL         int64
	ExpireTime  int64
	Conflict    *version.Conflict
	IsNewLocked bool
}

// VersionedEntry reads the current value (unswapping if the cell is new
// and has never been consulted) and reports key, value, TTL, expire, any
// DR conflict version, and whether the cell is new.
func (c *Cell[K, V]) VersionedEntry() (VersionedEntryResult[K, V], error) {
	c.lock()
	defer c.unlock()
	if err := c.checkObsoleteLocked(); err != nil {
		return VersionedEntryResult[K, V]{}, err
	}
	isNew := c.isNewLocked()
	if isNew {
		if _, err := c.unswapLocked(true); err != nil {
			return VersionedEntryResult[K, V]{}, err
		}
	}
	v, err := c.snapshotValueLocked()
	if err != nil {
		return VersionedEntryResult[K, V]{}, err
	}
	f := fieldsOf(c.ext)
	return VersionedEntryResult[K, V]{
		Key:         c.key,
		Value:       v,
		HasValue:    c.slot.hasValue(),
		TTL:         int64(f.ttl),
		ExpireTime:  f.expireTime,
		Conflict:    c.ver.Conflict,
		IsNewLocked: isNew,
	}, nil
}
