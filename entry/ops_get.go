package entry

import (
	"context"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// GetFlags controls innerGet's side effects.
type GetFlags struct {
	ReadSwap    bool
	ReadThrough bool
	Unmarshal   bool
	UpdateStats bool
	EmitEvent   bool
	Temporary   bool
	SubjectID   string
	TaskName    string
}

// GetResult is innerGet's composite return value.
type GetResult[V any] struct {
	Value V
	Found bool
}

// InnerGet reads the cell's value, optionally promoting from swap/off-heap
// and falling through to the persistent store.
func (c *Cell[K, V]) InnerGet(ctx context.Context, t *tx.Tx, flags GetFlags) (GetResult[V], error) {
	res, startVer, loadNeeded, err := c.innerGetLocked(flags)
	if err != nil || res.Found || !loadNeeded {
		return res, err
	}

	v, found, lerr := c.cctx.Store.LoadFromStore(ctx, t, c.key)
	if lerr != nil {
		return GetResult[V]{}, &ErrStore{Err: lerr}
	}
	if !found {
		return GetResult[V]{}, nil
	}
	return c.commitLoadedValueLocked(startVer, v, flags)
}

func (c *Cell[K, V]) innerGetLocked(flags GetFlags) (result GetResult[V], startVer version.Version, loadNeeded bool, err error) {
	c.lock()
	defer c.unlock()

	if err = c.checkObsoleteLocked(); err != nil {
		return
	}
	startVer = c.ver
	expired := c.expiredLocked()

	v, hasValue, lerr := c.loadCurrentLocked()
	if lerr != nil {
		err = lerr
		return
	}

	if !hasValue && flags.ReadSwap && c.isNewLocked() {
		if _, uerr := c.unswapLocked(true); uerr != nil {
			err = uerr
			return
		}
		expired = c.expiredLocked()
		v, hasValue, lerr = c.loadCurrentLocked()
		if lerr != nil {
			err = lerr
			return
		}
	}

	if expired && hasValue {
		expiredVal := v
		c.slot.clear()
		hasValue = false
		if flags.EmitEvent && c.cctx.EventBus.IsRecordable(EventExpired) {
			c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: c.ver, Type: EventExpired, OldVal: expiredVal, HasOld: true})
		}
		c.cctx.CQ.OnEntryExpired(c.key, expiredVal, true)
		c.cctx.Metrics.Expired()
	}

	if flags.UpdateStats {
		c.cctx.Metrics.Read(hasValue)
	}

	if hasValue {
		c.refreshTTL(c.cctx.Expiry, true)
		if flags.EmitEvent && c.cctx.EventBus.IsRecordable(EventRead) {
			c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: c.ver, Type: EventRead, NewVal: v, HasNew: true, SubjectID: flags.SubjectID, TaskName: flags.TaskName})
		}
		result = GetResult[V]{Value: v, Found: true}
		return
	}

	loadNeeded = flags.ReadThrough && c.cctx.Store.ReadThrough()
	return
}

func (c *Cell[K, V]) loadCurrentLocked() (V, bool, error) {
	var zero V
	if !c.slot.hasValue() {
		return zero, false, nil
	}
	v, err := c.snapshotValueLocked()
	return v, err == nil, err
}

// commitLoadedValueLocked writes a store-loaded value back into the cell
// under a fresh version, but only if nothing raced ahead of startVer — the
// optimistic concurrency guard for read-through outside the lock.
func (c *Cell[K, V]) commitLoadedValueLocked(startVer version.Version, v V, flags GetFlags) (GetResult[V], error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return GetResult[V]{}, err
	}
	if version.Compare(c.ver, startVer) != 0 {
		// Something else updated the cell while the store load was in
		// flight; the freshly observed value wins, not the stale load.
		return GetResult[V]{}, nil
	}

	c.ver = c.cctx.Versions.Next()
	c.slot.setHeap(v)
	c.clearTombstoneLocked()

	if err := c.cctx.Index.Store(bgContext(), c.key, v, c.ver, fieldsOf(c.ext).expireTime); err != nil {
		return GetResult[V]{}, &ErrIndexUpdate{Err: err}
	}
	if flags.EmitEvent && c.cctx.EventBus.IsRecordable(EventRead) {
		c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: c.ver, Type: EventRead, NewVal: v, HasNew: true, SubjectID: flags.SubjectID, TaskName: flags.TaskName})
	}
	return GetResult[V]{Value: v, Found: true}, nil
}

// ReloadResult is innerReload's composite return value.
type ReloadResult[V any] struct {
	Value V
	Found bool
}

// InnerReload unconditionally re-reads the store, outside the lock, then
// commits the loaded value under a fresh load version if nothing raced
// ahead in the meantime.
func (c *Cell[K, V]) InnerReload(ctx context.Context, t *tx.Tx) (ReloadResult[V], error) {
	c.lock()
	startVer := c.ver
	c.unlock()

	v, found, err := c.cctx.Store.LoadFromStore(ctx, t, c.key)
	if err != nil {
		return ReloadResult[V]{}, &ErrStore{Err: err}
	}

	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return ReloadResult[V]{}, err
	}
	if version.Compare(c.ver, startVer) != 0 {
		return ReloadResult[V]{}, nil
	}

	if err := c.cctx.Swap.Remove(c.key); err != nil {
		return ReloadResult[V]{}, &ErrStore{Err: err}
	}

	c.ver = c.cctx.Versions.NextForLoad(c.ver)
	if found {
		c.slot.setHeap(v)
		if ierr := c.cctx.Index.Store(ctx, c.key, v, c.ver, fieldsOf(c.ext).expireTime); ierr != nil {
			return ReloadResult[V]{}, &ErrIndexUpdate{Err: ierr}
		}
	} else {
		c.slot.clear()
		if ierr := c.cctx.Index.Remove(ctx, c.key); ierr != nil {
			return ReloadResult[V]{}, &ErrIndexUpdate{Err: ierr}
		}
	}

	c.cctx.Touch.Touch(c, c.ver.TopologyVersion)
	return ReloadResult[V]{Value: v, Found: found}, nil
}
