// Package registry implements the owning map: the sharded, policy-driven
// container of entry cells that turns the per-key state machine in
// package entry into a complete cache. It adapts the generic
// shard/policy infrastructure (packages cache and policy) to hold
// *entry.Cell[K, V] instead of a raw value, and routes every Get/Put/
// Remove through the cell's operation engine rather than touching a map
// slot directly.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/gridkv/entrycell/cache"
	"github.com/gridkv/entrycell/entry"
	"github.com/gridkv/entrycell/expiry"
	"github.com/gridkv/entrycell/internal/singleflight"
)

// Options configures a Cache: the shard/eviction Options from package
// cache (capacity, shard count, policy, metrics, clock) plus the
// entry.Context wiring every resident cell's collaborators.
type Options[K comparable, V any] struct {
	Shard cache.Options[K, *entry.Cell[K, V]]
	Ctx   *entry.Context[K, V]
}

// Cache owns every entry cell for one logical table. Shard placement and
// eviction are delegated to package cache; cell state transitions are
// delegated to package entry. Concurrent first-touch of the same key is
// coalesced through a singleflight group so exactly one cell is ever
// admitted per key.
type Cache[K comparable, V any] struct {
	cells cache.Cache[K, *entry.Cell[K, V]]
	cctx  *entry.Context[K, V]
	sf    singleflight.Group[K, *entry.Cell[K, V]]
}

// New constructs a Cache from opt. A nil opt.Ctx falls back to
// entry.DefaultContext, wired to no-op collaborators.
func New[K comparable, V any](opt Options[K, V]) *Cache[K, V] {
	if opt.Ctx == nil {
		opt.Ctx = entry.DefaultContext[K, V]()
	}
	c := &Cache[K, V]{cctx: opt.Ctx}

	// Evicting a node from the shard also runs the cell's EvictInternal,
	// which writes its value out to the swap tier and then obsoletes the
	// cell, clearing its value slot (and any off-heap allocation) —
	// plumbed in ahead of whatever eviction callback the caller supplied.
	userEvict := opt.Shard.OnEvict
	ctx := opt.Ctx
	opt.Shard.OnEvict = func(k K, cell *entry.Cell[K, V], reason cache.EvictReason) {
		obsoleteVer := ctx.Versions.Next()
		if _, err := cell.EvictInternal(context.Background(), true, obsoleteVer, nil); err != nil {
			ctx.Logger.Errorf("registry: evict %v: %v", k, err)
		}
		if userEvict != nil {
			userEvict(k, cell, reason)
		}
	}

	c.cells = cache.New[K, *entry.Cell[K, V]](opt.Shard)
	return c
}

// keyHash derives the cell's precomputed 32-bit hash via entry.HashKey
// (xxhash over the key's wire bytes) — a different problem from the
// shared FNV-1a hasher package util uses to pick a shard for the same
// key.
func keyHash[K comparable](k K) uint32 {
	return entry.HashKey(k)
}

// getOrCreateCell returns the resident cell for key, admitting a new,
// still-empty one if none exists yet.
func (c *Cache[K, V]) getOrCreateCell(ctx context.Context, key K) (*entry.Cell[K, V], error) {
	if cell, ok := c.cells.Get(key); ok {
		return cell, nil
	}
	return c.sf.Do(ctx, key, func() (*entry.Cell[K, V], error) {
		if cell, ok := c.cells.Get(key); ok {
			return cell, nil
		}
		var zero V
		cell := entry.New(c.cctx, key, keyHash(key), false, zero, 0)
		c.cells.Add(key, cell)
		return cell, nil
	})
}

// Get reads key's current value without read-through: a key with no
// resident cell is reported as a miss, even if Options.Ctx.Store would
// otherwise have a value for it.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	cell, ok := c.cells.Get(key)
	if !ok {
		return zero, false, nil
	}
	res, err := cell.InnerGet(ctx, nil, entry.GetFlags{
		ReadSwap:    true,
		ReadThrough: false,
		Unmarshal:   true,
		UpdateStats: true,
		EmitEvent:   true,
	})
	if err != nil {
		return zero, false, err
	}
	return res.Value, res.Found, nil
}

// GetOrLoad reads key's current value, admitting a cell and falling
// through to Options.Ctx.Store on a genuine miss (when the store has
// read-through enabled). Concurrent first-touch loads for the same key
// are coalesced.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K) (V, bool, error) {
	var zero V
	cell, err := c.getOrCreateCell(ctx, key)
	if err != nil {
		return zero, false, err
	}
	res, err := cell.InnerGet(ctx, nil, entry.GetFlags{
		ReadSwap:    true,
		ReadThrough: true,
		Unmarshal:   true,
		UpdateStats: true,
		EmitEvent:   true,
	})
	if err != nil {
		return zero, false, err
	}
	return res.Value, res.Found, nil
}

// Put installs val under key, admitting a cell on first touch, and
// writing through to Options.Ctx.Store if write-through is enabled.
func (c *Cache[K, V]) Put(ctx context.Context, key K, val V) error {
	cell, err := c.getOrCreateCell(ctx, key)
	if err != nil {
		return err
	}
	_, err = cell.InnerSet(ctx, entry.SetArgs[K, V]{Value: val})
	return err
}

// PutWithTTL is Put with an explicit per-entry relative TTL. A
// non-positive ttl disables expiration for this write.
func (c *Cache[K, V]) PutWithTTL(ctx context.Context, key K, val V, ttl time.Duration) error {
	cell, err := c.getOrCreateCell(ctx, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = expiry.Eternal
	}
	_, err = cell.InnerSet(ctx, entry.SetArgs[K, V]{Value: val, TTL: ttl})
	return err
}

// Remove deletes key if a resident cell holds a value for it, returning
// the removed value. Once the cell reports the removal as final (not a
// deferred-delete tombstone awaiting sweep), it is dropped from the
// shard map as well.
func (c *Cache[K, V]) Remove(ctx context.Context, key K) (V, bool, error) {
	var zero V
	cell, ok := c.cells.Get(key)
	if !ok {
		return zero, false, nil
	}
	res, err := cell.InnerRemove(ctx, nil, nil)
	if err != nil {
		return zero, false, err
	}
	if res.Changed {
		c.cells.Remove(key)
	}
	return res.OldValue, res.HasOld, nil
}

// Invoke runs proc against key's cell under the cell's own lock via
// InnerUpdateLocal, admitting a cell on first touch.
func (c *Cache[K, V]) Invoke(ctx context.Context, key K, proc entry.EntryProcessor[K, V]) (entry.UpdateResult[V], error) {
	cell, err := c.getOrCreateCell(ctx, key)
	if err != nil {
		return entry.UpdateResult[V]{}, err
	}
	res, err := cell.InnerUpdateLocal(ctx, entry.UpdateArgs[K, V]{Op: entry.OpTransform, Processor: proc})
	if err != nil {
		return entry.UpdateResult[V]{}, err
	}
	if res.CommitHappened && !res.HasNew {
		c.cells.Remove(key)
	}
	return res, nil
}

// Len returns the total number of resident cells across all shards.
func (c *Cache[K, V]) Len() int { return c.cells.Len() }

// Close releases shard resources. Cells themselves carry no closable
// state of their own.
func (c *Cache[K, V]) Close() error { return c.cells.Close() }

// String renders a short diagnostic summary, handy in logs.
func (c *Cache[K, V]) String() string {
	return fmt.Sprintf("registry.Cache{resident=%d}", c.Len())
}
