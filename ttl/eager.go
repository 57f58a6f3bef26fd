// Package ttl implements the eager-TTL tracker collaborator: a min-heap
// of live cells ordered by expire time, swept on a timer so an idle key
// still expires close to its deadline instead of only on next access —
// container/heap is the right tool here since the tracker only ever
// needs "what expires soonest", never an ordered traversal.
package ttl

import (
	"container/heap"
	"sync"
	"time"

	"github.com/gridkv/entrycell/entry"
	"github.com/gridkv/entrycell/version"
)

type cellHeap[K comparable, V any] []*entry.Cell[K, V]

func (h cellHeap[K, V]) Len() int { return len(h) }
func (h cellHeap[K, V]) Less(i, j int) bool {
	return h[i].ExpireTime() < h[j].ExpireTime()
}
func (h cellHeap[K, V]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cellHeap[K, V]) Push(x any)   { *h = append(*h, x.(*entry.Cell[K, V])) }
func (h *cellHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// EagerTracker is an entry.TTLTracker that sweeps expired cells on a
// fixed interval, calling OnTTLExpired on each so it can tombstone or
// obsolete itself and fire the usual expiry notifications.
type EagerTracker[K comparable, V any] struct {
	mu       sync.Mutex
	h        cellHeap[K, V]
	tracked  map[*entry.Cell[K, V]]bool
	versions version.Source
	interval time.Duration
	stop     chan struct{}
	stopped  sync.Once
}

// NewEagerTracker constructs a tracker that sweeps every interval,
// minting obsolete-marking versions from versions.
func NewEagerTracker[K comparable, V any](versions version.Source, interval time.Duration) *EagerTracker[K, V] {
	t := &EagerTracker[K, V]{
		tracked:  make(map[*entry.Cell[K, V]]bool),
		versions: versions,
		interval: interval,
		stop:     make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *EagerTracker[K, V]) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweepOnce()
		}
	}
}

func (t *EagerTracker[K, V]) sweepOnce() {
	for {
		c := t.popExpired()
		if c == nil {
			return
		}
		_, _ = c.OnTTLExpired(t.versions.Next())
	}
}

// popExpired pops and returns the soonest-expiring tracked cell if its
// expire time has already passed, or nil otherwise.
func (t *EagerTracker[K, V]) popExpired() *entry.Cell[K, V] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h.Len() == 0 {
		return nil
	}
	top := t.h[0]
	et := top.ExpireTime()
	if et == 0 || time.Now().UnixNano() < et {
		return nil
	}
	c := heap.Pop(&t.h).(*entry.Cell[K, V])
	delete(t.tracked, c)
	return c
}

func (t *EagerTracker[K, V]) AddTrackedEntry(c *entry.Cell[K, V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tracked[c] {
		return
	}
	t.tracked[c] = true
	heap.Push(&t.h, c)
}

func (t *EagerTracker[K, V]) RemoveTrackedEntry(c *entry.Cell[K, V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tracked[c] {
		return
	}
	delete(t.tracked, c)
	for i, x := range t.h {
		if x == c {
			heap.Remove(&t.h, i)
			return
		}
	}
}

// Close stops the sweep goroutine.
func (t *EagerTracker[K, V]) Close() {
	t.stopped.Do(func() { close(t.stop) })
}

var _ entry.TTLTracker[string, string] = (*EagerTracker[string, string])(nil)
