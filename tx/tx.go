// Package tx provides the minimal transaction handle the entry cell's
// transactional operations consult: write version, state, group-lock key,
// and a type-erased per-key write-set used by TX-mode peeks.
package tx

import (
	"sync"
	"sync/atomic"

	"github.com/gridkv/entrycell/version"
)

// State mirrors the subset of transaction states the cell cares about:
// whether a peek in SMART mode should prefer the transaction's write-set.
type State int32

const (
	StateActive State = iota
	StateCommitting
	StateCommitted
	StateRolledBack
)

// Tx is a local or distributed transaction handle. The entry package only
// ever reads from it; transaction lifecycle itself is owned elsewhere.
type Tx struct {
	ID    string
	local bool

	state State32
	ver   verBox

	groupLock atomic.Value // holds any opaque group-lock key, or nil

	mu       sync.RWMutex
	writeSet map[any]any
}

// State32 is an atomic.Int32-backed State, kept as a named type so callers
// don't need to know the underlying representation.
type State32 struct{ v atomic.Int32 }

func (s *State32) Load() State    { return State(s.v.Load()) }
func (s *State32) Store(st State) { s.v.Store(int32(st)) }

type verBox struct {
	mu sync.RWMutex
	v  *version.Version
}

func (b *verBox) load() *version.Version {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.v
}

func (b *verBox) store(v version.Version) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v = &v
}

// New constructs a transaction handle. local distinguishes a purely local
// cache transaction from a distributed one (see entry.InnerUpdateLocal vs
// InnerUpdate).
func New(id string, local bool) *Tx {
	t := &Tx{ID: id, local: local, writeSet: make(map[any]any)}
	t.state.Store(StateActive)
	return t
}

// Local reports whether this is a purely local-cache transaction.
func (t *Tx) Local() bool { return t.local }

// State returns the transaction's current lifecycle state.
func (t *Tx) State() State { return t.state.Load() }

// SetState transitions the transaction's lifecycle state.
func (t *Tx) SetState(s State) { t.state.Store(s) }

// WriteVersion returns the version this transaction will commit writes
// under, or nil if one hasn't been assigned yet.
func (t *Tx) WriteVersion() *version.Version { return t.ver.load() }

// SetWriteVersion assigns the transaction's commit version.
func (t *Tx) SetWriteVersion(v version.Version) { t.ver.store(v) }

// GroupLock returns the opaque group-lock key the transaction declared, or
// nil if it did not use group-locking.
func (t *Tx) GroupLock() any { return t.groupLock.Load() }

// SetGroupLock records the group-lock key this transaction holds.
func (t *Tx) SetGroupLock(key any) { t.groupLock.Store(key) }

// PeekWrite returns the value this transaction staged for key in its
// local write-set, used by peek mode TX.
func (t *Tx) PeekWrite(key any) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.writeSet[key]
	return v, ok
}

// PutWrite stages a value for key in the transaction's write-set.
func (t *Tx) PutWrite(key, val any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeSet[key] = val
}
