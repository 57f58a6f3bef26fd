package entry

import "github.com/gridkv/entrycell/offheap"

// valueKind is which representation (if any) currently holds the cell's
// value.
type valueKind uint8

const (
	valueEmpty valueKind = iota
	valueHeap
	valueOffHeap
)

// valueSlot is the cell's value store: the heap value slot and the
// off-heap pointer slot. Setting a value keeps exactly one representation
// authoritative.
type valueSlot[V any] struct {
	kind    valueKind
	heap    V
	hasHeap bool
	handle  *offheap.Handle
}

func (s *valueSlot[V]) hasValue() bool { return s.kind != valueEmpty }

// setHeap installs v in the heap slot and releases any off-heap handle:
// writing to the heap slot always resets the off-heap pointer.
func (s *valueSlot[V]) setHeap(v V) {
	s.releaseOffHeap()
	s.heap = v
	s.hasHeap = true
	s.kind = valueHeap
}

// setOffHeap installs h as the authoritative representation and clears
// the heap slot.
func (s *valueSlot[V]) setOffHeap(h *offheap.Handle) {
	if s.handle != nil && s.handle != h {
		s.handle.Release()
	}
	var zero V
	s.heap = zero
	s.hasHeap = false
	s.handle = h
	s.kind = valueOffHeap
}

// clear empties the slot, releasing any off-heap allocation.
func (s *valueSlot[V]) clear() {
	s.releaseOffHeap()
	var zero V
	s.heap = zero
	s.hasHeap = false
	s.kind = valueEmpty
}

func (s *valueSlot[V]) releaseOffHeap() {
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}
}

// valueBytesUnlocked returns the payload from whichever representation is
// present. It is an error to call this with neither representation
// present.
func (s *valueSlot[V]) valueBytesUnlocked(alloc offheap.Allocator) (payload, error) {
	switch s.kind {
	case valueHeap:
		return marshal(s.heap)
	case valueOffHeap:
		b, tag, err := alloc.Get(s.handle)
		if err != nil {
			return payload{}, &ErrOffHeapCodec{Err: err}
		}
		return payload{bytes: b, typeTag: tag}, nil
	default:
		return payload{}, &ErrOffHeapCodec{Err: errNoValue}
	}
}
