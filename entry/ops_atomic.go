package entry

import (
	"context"
	"strconv"
	"time"

	"github.com/gridkv/entrycell/version"
)

// UpdateOp is the atomic-update operation kind.
type UpdateOp int

const (
	OpUpdate UpdateOp = iota
	OpDelete
	OpTransform
)

// ProcessResult is what an EntryProcessor hands back from Process.
type ProcessResult[V any] struct {
	Modified bool
	NewValue V
	HasNew   bool
	Result   any
	Err      error
}

// EntryProcessor is the transform-mode closure run against the cell's
// current value under the lock. A closure failure is captured into
// ProcessResult.Err and never propagated — the operation proceeds as
// no-change.
type EntryProcessor[K comparable, V any] func(e InvokeEntry[K, V]) ProcessResult[V]

// UpdateArgs carries innerUpdateLocal/innerUpdate's inputs.
type UpdateArgs[K comparable, V any] struct {
	NewVer *version.Version

	Op        UpdateOp
	WriteObj  V
	Processor EntryProcessor[K, V]
	Filter    Filter[K, V]

	DRType     version.DRType
	TTL        time.Duration
	ExpireTime int64

	ConflictVer     *version.Conflict
	ConflictResolve bool
	VerCheck        bool
	Primary         bool
}

// UpdateResult is the composite innerUpdate/innerUpdateLocal return value.
type UpdateResult[V any] struct {
	Success          bool
	OldValue         V
	HasOld           bool
	NewValue         V
	HasNew           bool
	ProcessorResult  any
	ProcessorErr     error
	ReportedTTL      time.Duration
	ReportedExpire   int64
	EnqueueDeferred  *version.Version
	ConflictCtx      *version.Conflict
	CommitHappened   bool
}

// InnerUpdateLocal is the single-owner fast path for a local cache: no
// conflict resolution, no version check, write-through happens inside
// the lock because non-transactional atomic mode requires it.
func (c *Cell[K, V]) InnerUpdateLocal(ctx context.Context, args UpdateArgs[K, V]) (UpdateResult[V], error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return UpdateResult[V]{}, err
	}
	if c.isNewLocked() {
		if _, err := c.unswapLocked(true); err != nil {
			return UpdateResult[V]{}, err
		}
	}

	old, hadOld, err := c.loadOrStoreLoadLocked(ctx, nil, args.Op == OpTransform)
	if err != nil {
		return UpdateResult[V]{}, err
	}

	if !passes(args.Filter, peekView[K, V]{c.key, old, hadOld}) {
		c.refreshTTL(c.cctx.Expiry, hadOld)
		return UpdateResult[V]{OldValue: old, HasOld: hadOld}, nil
	}

	res, terminal, err := c.applyOperationLocked(old, hadOld, args)
	if err != nil || terminal {
		return res, err
	}

	newVer := c.cctx.Versions.Next()
	if c.cctx.Store.WriteThrough() {
		if res.HasNew {
			if perr := c.cctx.Store.PutToStore(ctx, nil, c.key, res.NewValue, newVer); perr != nil {
				return res, &ErrStore{Err: perr}
			}
		} else {
			if perr := c.cctx.Store.RemoveFromStore(ctx, nil, c.key); perr != nil {
				return res, &ErrStore{Err: perr}
			}
		}
	}

	c.ver = newVer
	c.commitOperationLocked(res, args)
	if !c.cctx.DeferredDelete && !res.HasNew {
		c.markObsolete0(newVer)
	}
	res.CommitHappened = true
	return res, nil
}

// InnerUpdate is the full replicated/partitioned atomic state machine:
// optional unswap, conflict resolution or version check, optional
// read-through load, filter, transform, TTL resolution, interceptor, and
// commit.
func (c *Cell[K, V]) InnerUpdate(ctx context.Context, args UpdateArgs[K, V]) (UpdateResult[V], error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return UpdateResult[V]{}, err
	}
	if c.isNewLocked() {
		if _, err := c.unswapLocked(true); err != nil {
			return UpdateResult[V]{}, err
		}
	}

	old, hadOld, err := c.loadOrStoreLoadLocked(ctx, args.NewVer, args.Op == OpTransform)
	if err != nil {
		return UpdateResult[V]{}, err
	}

	newVer := version.Version{}
	if args.NewVer != nil {
		newVer = *args.NewVer
	} else {
		newVer = c.cctx.Versions.Next()
	}

	if args.ConflictResolve && c.cctx.ConflictEnabled {
		oldSide := ConflictSide[V]{Value: old, HasValue: hadOld, Version: c.ver, TTL: fieldsOf(c.ext).ttl, ExpireTime: fieldsOf(c.ext).expireTime}
		prospective := args.WriteObj
		if args.Op == OpTransform && args.Processor != nil {
			pr := args.Processor(peekView[K, V]{c.key, old, hadOld})
			if pr.Modified {
				prospective = pr.NewValue
			}
		}
		newSide := ConflictSide[V]{Value: prospective, HasValue: true, Version: newVer, TTL: args.TTL, ExpireTime: args.ExpireTime}
		verdict := c.cctx.Conflict.Resolve(c.key, oldSide, newSide, args.VerCheck)
		c.cctx.Metrics.Conflict(verdict.Outcome)

		switch verdict.Outcome {
		case ConflictUseOld:
			if args.VerCheck && args.ConflictVer != nil && c.ver.Conflict != nil &&
				args.ConflictVer.DataCenterID == c.ver.Conflict.DataCenterID &&
				version.Compare(newVer, c.ver) == 0 &&
				c.cctx.Store.WriteThrough() && args.Primary {
				_ = c.cctx.Store.PutToStore(ctx, nil, c.key, old, c.ver)
			}
			return UpdateResult[V]{OldValue: old, HasOld: hadOld}, nil
		case ConflictMerge:
			args.WriteObj = verdict.Merged
			args.TTL = verdict.TTL
			args.ExpireTime = verdict.ExpireTime
			args.Op = OpUpdate
			args.ConflictVer = nil
		}
	} else if args.VerCheck {
		cmp := version.Compare(c.ver, newVer)
		if cmp >= 0 {
			if cmp == 0 && c.cctx.Store.WriteThrough() && args.Primary {
				_ = c.cctx.Store.PutToStore(ctx, nil, c.key, old, c.ver)
			}
			return UpdateResult[V]{OldValue: old, HasOld: hadOld}, nil
		}
	}

	if !passes(args.Filter, peekView[K, V]{c.key, old, hadOld}) {
		c.refreshTTL(c.cctx.Expiry, hadOld)
		return UpdateResult[V]{OldValue: old, HasOld: hadOld}, nil
	}

	res, terminal, err := c.applyOperationLocked(old, hadOld, args)
	if err != nil || terminal {
		return res, err
	}

	// Atomic mode writes the store inside the lock — correctness for
	// replicated/partitioned cells requires it, at the cost of holding
	// the lock across the I/O.
	if c.cctx.Store.WriteThrough() {
		if res.HasNew {
			if perr := c.cctx.Store.PutToStore(ctx, nil, c.key, res.NewValue, newVer); perr != nil {
				return res, &ErrStore{Err: perr}
			}
		} else {
			if perr := c.cctx.Store.RemoveFromStore(ctx, nil, c.key); perr != nil {
				return res, &ErrStore{Err: perr}
			}
		}
	}

	c.ver = newVer
	c.commitOperationLocked(res, args)
	if !c.cctx.DeferredDelete {
		if !res.HasNew {
			c.markObsolete0(newVer)
		}
	} else if !res.HasNew {
		ver := newVer
		res.EnqueueDeferred = &ver
	}
	res.CommitHappened = true
	_ = c.cctx.DR.Replicate(c.key, res.NewValue, res.HasNew, res.ReportedTTL, res.ReportedExpire, args.ConflictVer, args.DRType)
	return res, nil
}

// loadOrStoreLoadLocked loads the current value, falling through to the
// store (under the lock, per atomic-mode semantics) only for TRANSFORM or
// when the store is configured to always report the previous value.
func (c *Cell[K, V]) loadOrStoreLoadLocked(ctx context.Context, newVer *version.Version, isTransform bool) (V, bool, error) {
	v, has, err := c.loadCurrentLocked()
	if err != nil {
		return v, has, err
	}
	if has || !c.cctx.Store.ReadThrough() || !(isTransform || c.cctx.Store.LoadPreviousValue()) {
		return v, has, nil
	}

	loaded, found, lerr := c.cctx.Store.LoadFromStore(ctx, nil, c.key)
	if lerr != nil {
		return v, has, &ErrStore{Err: lerr}
	}
	if !found {
		return v, has, nil
	}
	c.slot.setHeap(loaded)
	return loaded, true, nil
}

// applyOperationLocked runs TRANSFORM (if requested), resolves TTL, runs
// the UPDATE/DELETE interceptor hook, and prepares the result — but does
// not yet mutate the cell's committed state.
func (c *Cell[K, V]) applyOperationLocked(old V, hadOld bool, args UpdateArgs[K, V]) (UpdateResult[V], bool, error) {
	op := args.Op
	newVal := args.WriteObj
	hasNew := op == OpUpdate

	if op == OpTransform {
		if args.Processor == nil {
			return UpdateResult[V]{OldValue: old, HasOld: hadOld}, true, nil
		}
		pr := args.Processor(peekView[K, V]{c.key, old, hadOld})
		if !pr.Modified {
			c.refreshTTL(c.cctx.Expiry, hadOld)
			return UpdateResult[V]{OldValue: old, HasOld: hadOld, ProcessorResult: pr.Result, ProcessorErr: pr.Err}, true, nil
		}
		newVal = pr.NewValue
		hasNew = pr.HasNew
		op = OpUpdate
		if !hasNew {
			op = OpDelete
		}
	}

	ttl, expireTime, degrade := c.resolveUpdateTTLLocked(args, hadOld)
	if op == OpUpdate && degrade {
		op = OpDelete
		hasNew = false
	}

	if op == OpDelete {
		cancel, interceptedVal := c.cctx.Intercept.OnBeforeRemove(peekView[K, V]{c.key, old, hadOld})
		if cancel {
			return UpdateResult[V]{OldValue: interceptedVal, HasOld: hadOld}, true, nil
		}
		return UpdateResult[V]{Success: true, OldValue: old, HasOld: hadOld, ReportedTTL: ttl, ReportedExpire: expireTime}, false, nil
	}

	transformed, ok := c.cctx.Intercept.OnBeforePut(peekView[K, V]{c.key, old, hadOld}, newVal)
	if !ok {
		return UpdateResult[V]{OldValue: old, HasOld: hadOld}, true, nil
	}
	return UpdateResult[V]{
		Success: true, OldValue: old, HasOld: hadOld,
		NewValue: transformed, HasNew: true,
		ReportedTTL: ttl, ReportedExpire: expireTime,
	}, false, nil
}

// commitOperationLocked performs the in-memory commit and fan-out once
// applyOperationLocked has decided the final shape of the write.
func (c *Cell[K, V]) commitOperationLocked(res UpdateResult[V], args UpdateArgs[K, V]) {
	if res.HasNew {
		if err := c.cctx.Index.Store(bgContext(), c.key, res.NewValue, c.ver, res.ReportedExpire); err == nil {
			c.clearTombstoneLocked()
			c.reportSizeDeltaLocked(res.OldValue, res.HasOld, res.NewValue, true)
			c.slot.setHeap(res.NewValue)
			f := extrasFields{ttl: res.ReportedTTL, expireTime: res.ReportedExpire}
			c.ext = narrow(f)
			c.variant.RecordNodeID(strconv.Itoa(int(c.ver.NodeOrder)))
		}
		c.cctx.Metrics.Put()
		if c.cctx.EventBus.IsRecordable(EventPut) {
			c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: c.ver, Type: EventPut, NewVal: res.NewValue, HasNew: true, OldVal: res.OldValue, HasOld: res.HasOld})
		}
		c.cctx.CQ.OnEntryUpdated(c.key, res.NewValue, true, res.OldValue, res.HasOld, false)
	} else {
		_ = c.cctx.Index.Remove(bgContext(), c.key)
		c.reportSizeDeltaLocked(res.OldValue, res.HasOld, res.OldValue, false)
		c.slot.clear()
		c.variant.ClearReaders(c)
		c.cctx.Metrics.Removed()
		if c.cctx.EventBus.IsRecordable(EventRemoved) {
			c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: c.ver, Type: EventRemoved, OldVal: res.OldValue, HasOld: res.HasOld})
		}
		c.cctx.CQ.OnEntryUpdated(c.key, res.OldValue, false, res.OldValue, res.HasOld, false)
		if args.Op == OpDelete {
			c.deleted = c.cctx.DeferredDelete
		}
	}
}

// resolveUpdateTTLLocked implements the update-path TTL/expire rules:
// conflict context wins, then an explicit caller expire time, then the
// explicit TTL (which may carry one of the expiry package's sentinel
// values), then the configured ExpiryPolicy's ForCreate/ForUpdate, then
// "keep current". degrade reports that a forbidden TTL-zero write must
// demote the operation to DELETE.
func (c *Cell[K, V]) resolveUpdateTTLLocked(args UpdateArgs[K, V], hadOld bool) (ttl time.Duration, expireTime int64, degrade bool) {
	cur := fieldsOf(c.ext)
	if args.ConflictVer != nil {
		return args.TTL, args.ExpireTime, false
	}
	if args.ExpireTime != 0 {
		return args.TTL, args.ExpireTime, false
	}
	switch args.TTL {
	case 0:
		if c.cctx.Expiry != nil {
			policyTTL := c.cctx.Expiry.ForCreate()
			if hadOld {
				policyTTL = c.cctx.Expiry.ForUpdate()
			}
			return c.resolvePolicyTTLLocked(policyTTL, cur)
		}
		return cur.ttl, cur.expireTime, false
	case expirySentinelKeep: // expiry.NotChanged
		return cur.ttl, cur.expireTime, false
	case expiryZeroSentinel: // expiry.Zero
		return expiryMinimum, c.cctx.now(), true
	case expiryEternalSentinel: // expiry.Eternal
		return 0, 0, false
	default:
		return args.TTL, c.cctx.now() + int64(args.TTL), false
	}
}

// resolvePolicyTTLLocked translates an ExpiryPolicy-returned duration,
// itself possibly one of the expiry package's sentinels, into a concrete
// ttl/expireTime pair. Shared by the update path and the plain-set path.
func (c *Cell[K, V]) resolvePolicyTTLLocked(ttl time.Duration, cur extrasFields) (time.Duration, int64, bool) {
	switch ttl {
	case 0, expirySentinelKeep:
		return cur.ttl, cur.expireTime, false
	case expiryZeroSentinel:
		return expiryMinimum, c.cctx.now(), true
	case expiryEternalSentinel:
		return 0, 0, false
	default:
		return ttl, c.cctx.now() + int64(ttl), false
	}
}

// refreshTTL applies an ExpiryPolicy's ForAccess duration to an entry that
// was read, or read but not changed by a filter-failed or no-op-transform
// update: sliding expiration extends the TTL on every access, not only on
// a successful write. hadPrevious gates the call — an entry with no value
// has nothing to refresh.
func (c *Cell[K, V]) refreshTTL(policy ExpiryPolicy, hadPrevious bool) {
	if policy == nil || !hadPrevious {
		return
	}
	accessTTL := policy.ForAccess()
	if accessTTL == expirySentinelKeep {
		return
	}
	ttl, expireTime, _ := c.resolvePolicyTTLLocked(accessTTL, fieldsOf(c.ext))
	f := fieldsOf(c.ext)
	f.ttl, f.expireTime = ttl, expireTime
	c.ext = narrow(f)
}

const (
	expiryZeroSentinel    time.Duration = -2
	expiryEternalSentinel time.Duration = -3
)
