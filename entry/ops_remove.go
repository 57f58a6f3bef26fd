package entry

import (
	"context"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// RemoveResult is innerRemove's composite return value.
type RemoveResult[V any] struct {
	Changed  bool
	OldValue V
	HasOld   bool
}

// InnerRemove performs a transactional delete.
func (c *Cell[K, V]) InnerRemove(ctx context.Context, t *tx.Tx, f Filter[K, V]) (RemoveResult[V], error) {
	result, shouldMarkObsolete, err := c.innerRemoveLocked(t, f)
	if err != nil || !result.Changed {
		return result, err
	}

	if c.cctx.Store.WriteThrough() {
		if perr := c.cctx.Store.RemoveFromStore(ctx, t, c.key); perr != nil {
			return result, &ErrStore{Err: perr}
		}
	}

	if shouldMarkObsolete {
		c.lock()
		if version.Compare(c.ver, c.lastRemoveVer) == 0 {
			c.markObsolete0(c.ver)
		}
		c.unlock()
	}

	c.cctx.Intercept.OnAfterRemove(peekView[K, V]{c.key, result.OldValue, result.HasOld})
	return result, nil
}

func (c *Cell[K, V]) innerRemoveLocked(t *tx.Tx, f Filter[K, V]) (result RemoveResult[V], shouldMarkObsolete bool, err error) {
	c.lock()
	defer c.unlock()

	if err = c.checkObsoleteLocked(); err != nil {
		return
	}
	if err = assertGroupLock(t, c.key); err != nil {
		return
	}

	oldVal, hadOld, lerr := c.loadCurrentLocked()
	if lerr != nil {
		err = lerr
		return
	}

	if !passes(f, peekView[K, V]{c.key, oldVal, hadOld}) {
		err = ErrFilterFailed
		return
	}

	cancel, interceptedVal := c.cctx.Intercept.OnBeforeRemove(peekView[K, V]{c.key, oldVal, hadOld})
	if cancel {
		result = RemoveResult[V]{OldValue: interceptedVal, HasOld: hadOld}
		return
	}

	if err2 := c.cctx.Index.Remove(bgContext(), c.key); err2 != nil {
		err = &ErrIndexUpdate{Err: err2}
		return
	}

	newVer := resolveWriteVersion(c.cctx, t, nil)
	c.slot.clear()
	c.ver = newVer

	c.variant.ClearReaders(c)

	c.cctx.Metrics.Removed()
	if c.cctx.EventBus.IsRecordable(EventRemoved) {
		c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: newVer, Type: EventRemoved, OldVal: oldVal, HasOld: hadOld})
	}
	c.cctx.CQ.OnEntryUpdated(c.key, oldVal, false, oldVal, hadOld, false)

	if c.cctx.DeferredDelete {
		c.deleted = true
		shouldMarkObsolete = false
	} else {
		shouldMarkObsolete = true
		c.lastRemoveVer = newVer
	}

	result = RemoveResult[V]{Changed: true, OldValue: oldVal, HasOld: hadOld}
	return
}
