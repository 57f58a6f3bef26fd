// Package eventbus implements the event-bus collaborator with a buffered
// channel: every recordable event is pushed onto the channel for a
// consumer goroutine to drain.
package eventbus

import (
	"context"

	"github.com/gridkv/entrycell/entry"
)

// Channel is an entry.EventBus backed by a buffered Go channel. Recordable
// reports true only for the types registered at construction, so callers
// that never care about, say, EventRead pay no AddEvent cost for it.
type Channel[K comparable, V any] struct {
	events    chan entry.Event[K, V]
	recordable map[entry.EventType]bool
	dropped   func()
}

// NewChannel constructs a Channel with the given buffer size and the set
// of event types worth recording. A full channel drops the event and
// calls onDrop, if non-nil, rather than blocking the cell's lock holder.
func NewChannel[K comparable, V any](bufSize int, types []entry.EventType, onDrop func()) *Channel[K, V] {
	rec := make(map[entry.EventType]bool, len(types))
	for _, t := range types {
		rec[t] = true
	}
	return &Channel[K, V]{
		events:     make(chan entry.Event[K, V], bufSize),
		recordable: rec,
		dropped:    onDrop,
	}
}

func (c *Channel[K, V]) IsRecordable(t entry.EventType) bool { return c.recordable[t] }

func (c *Channel[K, V]) AddEvent(e entry.Event[K, V]) {
	select {
	case c.events <- e:
	default:
		if c.dropped != nil {
			c.dropped()
		}
	}
}

// Events returns the channel a consumer drains. Closing it is the caller's
// responsibility once no more AddEvent calls can happen.
func (c *Channel[K, V]) Events() <-chan entry.Event[K, V] { return c.events }

// Drain reads events until ctx is done or the channel closes, calling fn
// for each. It is a convenience loop for tests and simple consumers.
func (c *Channel[K, V]) Drain(ctx context.Context, fn func(entry.Event[K, V])) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-c.events:
			if !ok {
				return
			}
			fn(e)
		}
	}
}

var _ entry.EventBus[string, string] = (*Channel[string, string])(nil)
