package entry

import (
	"context"
	"time"

	"github.com/gridkv/entrycell/version"
)

// Poke updates the value in place without a version change observable to
// the transaction engine. It still refreshes the index under the next
// version internally, but the cell's externally visible version field is
// left untouched — used by tests and internal maintenance, never by
// ordinary application traffic.
func (c *Cell[K, V]) Poke(v V) error {
	c.lock()
	defer c.unlock()
	if err := c.checkObsoleteLocked(); err != nil {
		return err
	}
	indexVer := c.cctx.Versions.Next()
	if err := c.cctx.Index.Store(bgContext(), c.key, v, indexVer, fieldsOf(c.ext).expireTime); err != nil {
		return &ErrIndexUpdate{Err: err}
	}
	c.slot.setHeap(v)
	return nil
}

// InitialValueArgs carries InitialValue's inputs.
type InitialValueArgs[K comparable, V any] struct {
	Value           V
	Ver             version.Version
	TTL             time.Duration
	ExpireTime      int64
	Preload         bool
	TopologyVersion int64
	DRType          version.DRType
}

// InitialValue installs a value only if the cell is new, or deleted and
// this is not a preload — load semantics: the version is not advanced
// past what the caller supplied.
func (c *Cell[K, V]) InitialValue(args InitialValueArgs[K, V]) (installed bool, err error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return false, err
	}
	if !c.isNewLocked() && !(c.deleted && !args.Preload) {
		return false, nil
	}

	if err := c.cctx.Index.Store(bgContext(), c.key, args.Value, args.Ver, args.ExpireTime); err != nil {
		return false, &ErrIndexUpdate{Err: err}
	}

	c.clearTombstoneLocked()
	c.slot.setHeap(args.Value)
	c.ver = args.Ver
	c.ext = narrow(extrasFields{ttl: args.TTL, expireTime: args.ExpireTime})

	if args.Preload {
		c.cctx.CQ.OnEntryUpdated(c.key, args.Value, true, args.Value, false, true)
	}
	c.cctx.Touch.Touch(c, args.TopologyVersion)
	return true, nil
}

// InitialValueFromSwap is InitialValue's swap-entry variant: it installs
// a value recovered from the swap tier under the same new-cell-only rule.
func (c *Cell[K, V]) InitialValueFromSwap(se *SwapEntry, topologyVersion int64) (bool, error) {
	if se == nil {
		return false, nil
	}
	v, err := unmarshal[V](payload{bytes: se.Bytes, typeTag: se.TypeTag})
	if err != nil {
		return false, err
	}
	return c.InitialValue(InitialValueArgs[K, V]{
		Value:           v,
		Ver:             se.Version,
		TTL:             se.TTL,
		ExpireTime:      se.ExpireTime,
		TopologyVersion: topologyVersion,
	})
}

// VersionedValue swaps the value only if curVer matches the cell's
// current version; if newVer is the zero Version, a fresh one is minted.
func (c *Cell[K, V]) VersionedValue(v V, curVer, newVer version.Version) (changed bool, err error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return false, err
	}
	if version.Compare(c.ver, curVer) != 0 {
		return false, nil
	}
	if newVer.IsZero() {
		newVer = c.cctx.Versions.Next()
	}

	if err := c.cctx.Index.Store(bgContext(), c.key, v, newVer, fieldsOf(c.ext).expireTime); err != nil {
		return false, &ErrIndexUpdate{Err: err}
	}
	c.slot.setHeap(v)
	c.ver = newVer
	return true, nil
}

// Invalidate clears the value and bumps the version if curVer matches,
// without obsoleting the cell — it is simply emptied.
func (c *Cell[K, V]) Invalidate(curVer, newVer version.Version) (changed bool, err error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return false, err
	}
	if version.Compare(c.ver, curVer) != 0 {
		return false, nil
	}

	if err := c.cctx.Swap.Remove(c.key); err != nil {
		return false, &ErrStore{Err: err}
	}
	if err := c.cctx.Index.Remove(bgContext(), c.key); err != nil {
		return false, &ErrIndexUpdate{Err: err}
	}
	c.slot.clear()
	c.ver = newVer
	c.variant.OnInvalidate()
	return true, nil
}

// Clear attempts to make the cell obsolete under ver, failing gracefully
// (returning false, nil) if the filter rejects the current value or the
// cell still has readers, unless readers is true.
func (c *Cell[K, V]) Clear(ver version.Version, readers bool, f Filter[K, V]) (bool, error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return false, nil
	}
	val, has, err := c.loadCurrentLocked()
	if err != nil {
		return false, err
	}
	if !passes(f, peekView[K, V]{c.key, val, has}) {
		return false, nil
	}
	if !readers && c.variant.HasReaders(c) {
		return false, nil
	}
	return c.markObsolete0(ver), nil
}

// OnTTLExpired is invoked by the TTL sweeper. If the cell is genuinely
// expired, it either tombstones (deferred-delete mode) or marks obsolete,
// then emits EXPIRED and notifies continuous queries.
func (c *Cell[K, V]) OnTTLExpired(obsoleteVer version.Version) (expired bool, err error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return false, nil
	}
	if !c.expiredLocked() {
		return false, nil
	}

	val, has, lerr := c.loadCurrentLocked()
	if lerr != nil {
		return false, lerr
	}

	c.cctx.TTL.RemoveTrackedEntry(c)

	if c.cctx.DeferredDelete {
		c.deleted = true
		c.slot.clear()
	} else {
		c.markObsolete0(obsoleteVer)
	}

	if c.cctx.EventBus.IsRecordable(EventExpired) {
		c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: obsoleteVer, Type: EventExpired, OldVal: val, HasOld: has})
	}
	c.cctx.CQ.OnEntryExpired(c.key, val, has)
	c.cctx.Metrics.Expired()
	return true, nil
}

// EvictInternal marks the cell obsolete under a filter check, writing to
// swap first if swap is true.
func (c *Cell[K, V]) EvictInternal(ctx context.Context, swap bool, obsoleteVer version.Version, f Filter[K, V]) (bool, error) {
	if swap {
		if err := c.Swap(); err != nil {
			return false, err
		}
	}
	c.lock()
	defer c.unlock()
	if err := c.checkObsoleteLocked(); err != nil {
		return true, nil
	}
	val, has, err := c.loadCurrentLocked()
	if err != nil {
		return false, err
	}
	if !passes(f, peekView[K, V]{c.key, val, has}) {
		return false, nil
	}
	return c.markObsolete0(obsoleteVer), nil
}

// Compact is a no-op unless the cell is expired or empty, in which case
// it clears (and potentially obsoletes) the cell.
func (c *Cell[K, V]) Compact(f Filter[K, V]) (bool, error) {
	c.lock()
	empty := !c.slot.hasValue() || c.expiredLocked()
	startVer := c.ver
	c.unlock()

	if !empty {
		return false, nil
	}
	return c.Clear(startVer, false, f)
}
