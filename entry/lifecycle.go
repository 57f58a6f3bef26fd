package entry

import (
	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// assertGroupLock is the group-lock sanity check: a transaction that
// declared a group lock may only touch the single key it locked.
// Violating this is a programming error, not a retryable condition.
func assertGroupLock[K comparable](t *tx.Tx, key K) error {
	if t == nil {
		return nil
	}
	gl := t.GroupLock()
	if gl == nil {
		return nil
	}
	lockedKey, ok := gl.(K)
	if !ok || lockedKey != key {
		return &ErrSanityAssert{Msg: "group-locked transaction touched a key outside its declared lock"}
	}
	return nil
}

// isNewLocked reports whether the cell has never been updated since
// construction: its current version is still the version it started with.
func (c *Cell[K, V]) isNewLocked() bool {
	return c.ver.Order == c.startVersionOrder && c.ver.NodeOrder == c.cctx.NodeOrder
}

// IsNew reports whether the cell has never been updated since
// construction.
func (c *Cell[K, V]) IsNew() (bool, error) {
	c.lock()
	defer c.unlock()
	if err := c.checkObsoleteLocked(); err != nil {
		return false, err
	}
	return c.isNewLocked(), nil
}

// checkObsoleteLocked is called at the top of every lock critical section.
// Callers that observe ErrRemoved must re-fetch the cell from the owning
// map.
func (c *Cell[K, V]) checkObsoleteLocked() error {
	if c.obsoleteVersionLocked() != nil {
		return ErrRemoved
	}
	return nil
}

func (c *Cell[K, V]) obsoleteVersionLocked() *version.Version {
	return fieldsOf(c.ext).obsoleteVer
}

// ObsoleteVersion returns the version at which the cell became obsolete,
// or nil if it is still live.
func (c *Cell[K, V]) ObsoleteVersion() *version.Version {
	c.lock()
	defer c.unlock()
	return c.obsoleteVersionLocked()
}

// Obsolete reports whether the cell is terminal.
func (c *Cell[K, V]) Obsolete() bool {
	c.lock()
	defer c.unlock()
	return c.obsoleteVersionLocked() != nil
}

// markObsoleteLocked sets the obsolete version in place, narrowing
// extras. It does not clear the value — callers that want the value
// cleared call c.slot.clear() themselves.
func (c *Cell[K, V]) markObsoleteLocked(ver version.Version) {
	f := fieldsOf(c.ext)
	v := ver
	f.obsoleteVer = &v
	c.ext = narrow(f)
	c.cctx.Touch.Touch(c, ver.TopologyVersion)
}

// MarkObsolete marks the cell obsolete under ver. It returns true if the
// cell is (now) obsolete, false if an MVCC candidate still in use blocks
// obsoletion.
func (c *Cell[K, V]) MarkObsolete(ver version.Version) bool {
	c.lock()
	defer c.unlock()
	return c.markObsolete0(ver)
}

func (c *Cell[K, V]) markObsolete0(ver version.Version) bool {
	if c.obsoleteVersionLocked() != nil {
		return true
	}
	f := fieldsOf(c.ext)
	if f.hasMvcc() && !f.mvccList.PermitsObsoletion(ver) {
		return false
	}
	c.markObsoleteLocked(ver)
	c.slot.clear()
	return true
}

// MarkObsoleteIfEmpty obsoletes the cell only if it has no value or is
// expired; under deferred-delete it may instead tombstone and report
// that a deferred delete should be enqueued by the caller.
func (c *Cell[K, V]) MarkObsoleteIfEmpty(ver version.Version) (obsoleted bool, enqueueDeferred bool, err error) {
	c.lock()
	defer c.unlock()
	if err := c.checkObsoleteLocked(); err != nil {
		return false, false, err
	}

	expired := c.expiredLocked()
	if c.slot.hasValue() && !expired {
		return false, false, nil
	}

	if c.cctx.DeferredDelete && !c.deleted {
		c.deleted = true
		c.slot.clear()
		return false, true, nil
	}

	return c.markObsolete0(ver), false, nil
}

// expiredLocked reports whether the cell's expire time has passed.
func (c *Cell[K, V]) expiredLocked() bool {
	et := fieldsOf(c.ext).expireTime
	if et == 0 {
		return false
	}
	return c.cctx.now() >= et
}

// ExpireTime returns the cell's current absolute expire time in Unix
// nanoseconds, or 0 if the cell carries no TTL. Used by a TTLTracker to
// order its sweep.
func (c *Cell[K, V]) ExpireTime() int64 {
	c.lock()
	defer c.unlock()
	return fieldsOf(c.ext).expireTime
}

// Deleted reports whether the cell carries a deferred-delete tombstone.
func (c *Cell[K, V]) Deleted() bool {
	c.lock()
	defer c.unlock()
	return c.deleted
}

// ObsoleteOrDeleted reports obsolescence or tombstone state.
func (c *Cell[K, V]) ObsoleteOrDeleted() bool {
	c.lock()
	defer c.unlock()
	return c.obsoleteVersionLocked() != nil || c.deleted
}

func (c *Cell[K, V]) clearTombstoneLocked() {
	c.deleted = false
}
