// Package cq implements the continuous-query notifier collaborator: a
// set of listener callbacks fanned out on every committed update or
// expiry, keyed by a caller-chosen subscription ID so a listener can be
// deregistered cheaply under concurrent load.
package cq

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// UpdateListener is called synchronously from the cell's commit path —
// it must not block or re-enter the cache.
type UpdateListener[K comparable, V any] func(key K, newVal V, hasNew bool, oldVal V, hasOld bool, preload bool)

// ExpiredListener is called when a tracked cell's TTL sweep fires.
type ExpiredListener[K comparable, V any] func(key K, expiredVal V, hasExpired bool)

type subscription[K comparable, V any] struct {
	onUpdate  UpdateListener[K, V]
	onExpired ExpiredListener[K, V]
}

// Registry is an entry.ContinuousQueryNotifier backed by an xsync.MapOf
// of subscriptions, giving lock-free fan-out reads under the common case
// of many concurrent cell commits and few listener churn events.
type Registry[K comparable, V any] struct {
	subs    *xsync.MapOf[int64, subscription[K, V]]
	nextID  atomic.Int64
}

// NewRegistry constructs an empty Registry.
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{subs: xsync.NewMapOf[int64, subscription[K, V]]()}
}

// Subscribe registers a listener pair and returns an ID for Unsubscribe.
// Either callback may be nil.
func (r *Registry[K, V]) Subscribe(onUpdate UpdateListener[K, V], onExpired ExpiredListener[K, V]) int64 {
	id := r.nextID.Add(1)
	r.subs.Store(id, subscription[K, V]{onUpdate: onUpdate, onExpired: onExpired})
	return id
}

// Unsubscribe removes a listener pair by ID.
func (r *Registry[K, V]) Unsubscribe(id int64) {
	r.subs.Delete(id)
}

func (r *Registry[K, V]) OnEntryUpdated(key K, newVal V, hasNew bool, oldVal V, hasOld bool, preload bool) {
	r.subs.Range(func(_ int64, sub subscription[K, V]) bool {
		if sub.onUpdate != nil {
			sub.onUpdate(key, newVal, hasNew, oldVal, hasOld, preload)
		}
		return true
	})
}

func (r *Registry[K, V]) OnEntryExpired(key K, expiredVal V, hasExpired bool) {
	r.subs.Range(func(_ int64, sub subscription[K, V]) bool {
		if sub.onExpired != nil {
			sub.onExpired(key, expiredVal, hasExpired)
		}
		return true
	})
}
