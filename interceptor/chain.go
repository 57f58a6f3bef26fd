// Package interceptor implements the before/after put/remove hook
// collaborator as a composable chain, the Go equivalent of stacking
// multiple cache interceptors in front of a single cache.
package interceptor

import "github.com/gridkv/entrycell/entry"

// Chain runs a sequence of entry.Interceptor values in order. OnBeforePut
// and OnBeforeRemove stop at the first link that aborts; OnAfterPut and
// OnAfterRemove always run every link, in order, regardless of earlier
// failures, mirroring a logging/metrics tail that must always see the
// final outcome.
type Chain[K comparable, V any] struct {
	links []entry.Interceptor[K, V]
}

// NewChain builds a Chain over links, applied front-to-back.
func NewChain[K comparable, V any](links ...entry.Interceptor[K, V]) *Chain[K, V] {
	return &Chain[K, V]{links: links}
}

func (c *Chain[K, V]) OnBeforePut(e entry.InvokeEntry[K, V], newVal V) (V, bool) {
	v := newVal
	for _, link := range c.links {
		var ok bool
		v, ok = link.OnBeforePut(e, v)
		if !ok {
			return v, false
		}
	}
	return v, true
}

func (c *Chain[K, V]) OnBeforeRemove(e entry.InvokeEntry[K, V]) (bool, V) {
	val, _ := e.Value()
	for _, link := range c.links {
		cancel, v := link.OnBeforeRemove(e)
		if cancel {
			return true, v
		}
		val = v
	}
	return false, val
}

func (c *Chain[K, V]) OnAfterPut(e entry.InvokeEntry[K, V]) {
	for _, link := range c.links {
		link.OnAfterPut(e)
	}
}

func (c *Chain[K, V]) OnAfterRemove(e entry.InvokeEntry[K, V]) {
	for _, link := range c.links {
		link.OnAfterRemove(e)
	}
}

var _ entry.Interceptor[string, string] = (*Chain[string, string])(nil)
