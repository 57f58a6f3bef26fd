package entry

import (
	"context"
	"strconv"
	"time"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

// SetArgs carries innerSet's inputs.
type SetArgs[K comparable, V any] struct {
	Tx          *tx.Tx
	Value       V
	Filter      Filter[K, V]
	Ver         *version.Version // explicit version, or nil
	TTL         time.Duration    // explicit TTL; 0 means "compute from policy"
	ExpireTime  int64            // explicit expire time; 0 means "compute"
	NeedOld     bool
}

// SetResult is innerSet's composite return value.
type SetResult[V any] struct {
	Changed  bool
	OldValue V
	HasOld   bool
}

// InnerSet performs a transactional write: filter, interceptor, TTL
// resolution, commit, and (outside the lock) write-through.
func (c *Cell[K, V]) InnerSet(ctx context.Context, args SetArgs[K, V]) (SetResult[V], error) {
	committed, newVer, err := c.innerSetLocked(args)
	if err != nil || !committed.Changed {
		return committed, err
	}

	if c.cctx.Store.WriteThrough() {
		if perr := c.cctx.Store.PutToStore(ctx, args.Tx, c.key, args.Value, newVer); perr != nil {
			return committed, &ErrStore{Err: perr}
		}
	}
	c.cctx.Intercept.OnAfterPut(peekView[K, V]{c.key, args.Value, true})
	return committed, nil
}

func (c *Cell[K, V]) innerSetLocked(args SetArgs[K, V]) (SetResult[V], version.Version, error) {
	c.lock()
	defer c.unlock()

	if err := c.checkObsoleteLocked(); err != nil {
		return SetResult[V]{}, version.Version{}, err
	}
	if err := assertGroupLock(args.Tx, c.key); err != nil {
		return SetResult[V]{}, version.Version{}, err
	}
	if c.isNewLocked() {
		if _, err := c.unswapLocked(true); err != nil {
			return SetResult[V]{}, version.Version{}, err
		}
	}

	oldVal, hadOld, err := c.loadCurrentLocked()
	if err != nil {
		return SetResult[V]{}, version.Version{}, err
	}

	if !passes(args.Filter, peekView[K, V]{c.key, oldVal, hadOld}) {
		return SetResult[V]{OldValue: oldVal, HasOld: hadOld}, version.Version{}, nil
	}

	newVal, ok := c.cctx.Intercept.OnBeforePut(peekView[K, V]{c.key, oldVal, hadOld}, args.Value)
	if !ok {
		return SetResult[V]{OldValue: oldVal, HasOld: hadOld}, version.Version{}, nil
	}

	newVer := resolveWriteVersion(c.cctx, args.Tx, args.Ver)

	ttl, expireTime := c.resolveWriteTTLLocked(args.TTL, args.ExpireTime, hadOld)

	if err := c.cctx.Index.Store(bgContext(), c.key, newVal, newVer, expireTime); err != nil {
		return SetResult[V]{}, version.Version{}, &ErrIndexUpdate{Err: err}
	}

	c.clearTombstoneLocked()
	c.reportSizeDeltaLocked(oldVal, hadOld, newVal, true)
	c.slot.setHeap(newVal)
	c.ver = newVer
	c.variant.RecordNodeID(strconv.Itoa(int(newVer.NodeOrder)))
	f := extrasFields{ttl: ttl, expireTime: expireTime}
	if old := c.ext; old != nil {
		oldF := old.fields()
		f.attrs = oldF.attrs
		f.mvccList = oldF.mvccList
	}
	c.ext = narrow(f)

	if c.cctx.ConflictEnabled {
		_ = c.cctx.DR.Replicate(c.key, newVal, true, ttl, expireTime, nil, version.DRPrimary)
	}
	c.cctx.Metrics.Put()
	if c.cctx.EventBus.IsRecordable(EventPut) {
		c.cctx.EventBus.AddEvent(Event[K, V]{Key: c.key, NewVersion: newVer, Type: EventPut, NewVal: newVal, HasNew: true, OldVal: oldVal, HasOld: hadOld})
	}
	c.cctx.CQ.OnEntryUpdated(c.key, newVal, true, oldVal, hadOld, false)

	return SetResult[V]{Changed: true, OldValue: oldVal, HasOld: hadOld}, newVer, nil
}

func resolveWriteVersion[K comparable, V any](cctx *Context[K, V], t *tx.Tx, explicit *version.Version) version.Version {
	if explicit != nil {
		return *explicit
	}
	if t != nil {
		if wv := t.WriteVersion(); wv != nil {
			return *wv
		}
	}
	return cctx.Versions.Next()
}

// resolveWriteTTLLocked applies the TTL rules: explicit sentinel TTLs from
// the expiry package are honored as "keep current" / "no TTL" (eternal) /
// "compute expire now"; an explicit caller TTL otherwise always wins over
// the policy.
func (c *Cell[K, V]) resolveWriteTTLLocked(ttl time.Duration, expireTime int64, hadOld bool) (time.Duration, int64) {
	cur := fieldsOf(c.ext)
	if expireTime != 0 {
		return ttl, expireTime
	}
	if ttl == 0 {
		if c.cctx.Expiry != nil {
			policyTTL := c.cctx.Expiry.ForCreate()
			if hadOld {
				policyTTL = c.cctx.Expiry.ForUpdate()
			}
			t, et, _ := c.resolvePolicyTTLLocked(policyTTL, cur)
			return t, et
		}
		return cur.ttl, cur.expireTime
	}
	if ttl < 0 { // sentinel from package expiry
		switch {
		case ttl == expirySentinelKeep:
			return cur.ttl, cur.expireTime
		case ttl == expiryEternalSentinel:
			return 0, 0
		default:
			ttl = expiryMinimum
		}
	}
	return ttl, c.cctx.now() + int64(ttl)
}

const (
	expirySentinelKeep time.Duration = -1
	expiryMinimum      time.Duration = time.Millisecond
)
