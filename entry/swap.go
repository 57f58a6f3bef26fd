package entry

import "github.com/gridkv/entrycell/version"

// Unswap restores the cell's value from the swap/off-heap tier into the
// heap slot if it isn't already resident. needValue controls whether a
// genuinely missing value is worth the swap-manager round trip at all;
// callers that only want to know whether the cell has *something* can
// pass false and skip the read.
//
// It returns true if a value was (re)loaded, and false if the cell already
// had a heap value, had already been unswapped, needValue was false, or
// swap had nothing for this key. An obsolete cell returns ErrRemoved.
func (c *Cell[K, V]) Unswap(needValue bool) (bool, error) {
	c.lock()
	defer c.unlock()
	return c.unswapLocked(needValue)
}

func (c *Cell[K, V]) unswapLocked(needValue bool) (bool, error) {
	if err := c.checkObsoleteLocked(); err != nil {
		return false, err
	}
	if c.slot.hasValue() {
		return false, nil
	}
	if c.unswapped {
		return false, nil
	}
	c.unswapped = true
	if !needValue {
		return false, nil
	}

	se, err := c.cctx.Swap.ReadAndRemove(c.key)
	if err != nil {
		return false, &ErrStore{Err: err}
	}
	if se == nil {
		return false, nil
	}

	v, err := unmarshal[V](payload{bytes: se.Bytes, typeTag: se.TypeTag})
	if err != nil {
		return false, err
	}
	c.slot.setHeap(v)
	if version.Compare(se.Version, c.ver) > 0 {
		c.ver = se.Version
	}
	f := fieldsOf(c.ext)
	f.ttl = se.TTL
	f.expireTime = se.ExpireTime
	c.ext = narrow(f)
	return true, nil
}

// Swap pushes the cell's current value out to the swap/off-heap tier and
// clears the heap slot, the inverse of Unswap. It is a no-op on an
// obsolete, already-empty, or deleted (tombstoned) cell. An expired cell
// has any off-heap copy released instead of being written to swap — the
// value is stale, not worth persisting. A value that is already
// off-heap-only needs no duplicate write; it only gets off-heap eviction
// re-enabled.
func (c *Cell[K, V]) Swap() error {
	c.lock()
	defer c.unlock()
	if c.obsoleteVersionLocked() != nil {
		return nil
	}
	if !c.slot.hasValue() {
		return nil
	}
	if c.deleted {
		return nil
	}
	if c.expiredLocked() {
		if err := c.cctx.Swap.RemoveOffHeap(c.key); err != nil {
			return &ErrStore{Err: err}
		}
		return nil
	}
	if c.slot.kind == valueOffHeap {
		if err := c.cctx.Swap.EnableOffHeapEviction(c.key); err != nil {
			return &ErrStore{Err: err}
		}
		return nil
	}

	p, err := c.slot.valueBytesUnlocked(c.cctx.Allocator)
	if err != nil {
		return err
	}
	f := fieldsOf(c.ext)
	if err := c.cctx.Swap.Write(c.key, p.bytes, p.typeTag, c.ver, f.ttl, f.expireTime, "", ""); err != nil {
		return &ErrStore{Err: err}
	}
	c.slot.clear()
	c.unswapped = false
	return nil
}

// EvictInBatch marks the cell obsolete under ver for a batch eviction
// sweep and, if the cell still carries a value, returns the descriptor
// the caller should flush to swap storage alongside the rest of its
// batch — one swap I/O instead of one per entry.
//
// It returns ok=false (and a nil descriptor) if an MVCC candidate still
// in use blocks the eviction.
func (c *Cell[K, V]) EvictInBatch(ver version.Version) (entryToFlush *BatchSwapEntry[K], ok bool, err error) {
	c.lock()
	defer c.unlock()

	if c.obsoleteVersionLocked() != nil {
		return nil, true, nil
	}
	f := fieldsOf(c.ext)
	if f.hasMvcc() && !f.mvccList.PermitsObsoletion(ver) {
		return nil, false, nil
	}

	var batch *BatchSwapEntry[K]
	if c.slot.hasValue() {
		p, perr := c.slot.valueBytesUnlocked(c.cctx.Allocator)
		if perr != nil {
			return nil, false, perr
		}
		batch = &BatchSwapEntry[K]{
			Key:        c.key,
			Bytes:      p.bytes,
			TypeTag:    p.typeTag,
			Version:    c.ver,
			TTL:        f.ttl,
			ExpireTime: f.expireTime,
		}
	}

	c.markObsoleteLocked(ver)
	c.slot.clear()
	return batch, true, nil
}
