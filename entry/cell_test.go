package entry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridkv/entrycell/tx"
	"github.com/gridkv/entrycell/version"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

// recordingEventBus considers every event type recordable and keeps every
// event it is handed, so tests can assert exact counts instead of just
// "it didn't crash".
type recordingEventBus[K comparable, V any] struct {
	events []Event[K, V]
}

func (b *recordingEventBus[K, V]) IsRecordable(EventType) bool { return true }
func (b *recordingEventBus[K, V]) AddEvent(e Event[K, V])      { b.events = append(b.events, e) }

func (b *recordingEventBus[K, V]) countOf(t EventType) int {
	n := 0
	for _, e := range b.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestCell(t *testing.T, clk Clock) *Cell[string, string] {
	t.Helper()
	cctx := DefaultContext[string, string]()
	if clk != nil {
		cctx.Clock = clk
	}
	return New(cctx, "k", 1, false, "", 0)
}

func newTestCellWithContext(t *testing.T, configure func(*Context[string, string])) *Cell[string, string] {
	t.Helper()
	cctx := DefaultContext[string, string]()
	if configure != nil {
		configure(cctx)
	}
	return New(cctx, "k", 1, false, "", 0)
}

// A freshly constructed cell is new and holds no value until InnerSet
// commits one.
func TestCell_NewIsEmptyAndNew(t *testing.T) {
	isNew, err := newTestCell(t, nil).IsNew()
	require.NoError(t, err)
	require.True(t, isNew)
}

// InnerSet followed by InnerGet must observe the just-written value
// (the read-your-writes invariant).
func TestCell_SetThenGet(t *testing.T) {
	c := newTestCell(t, nil)
	ctx := context.Background()

	setRes, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)
	require.True(t, setRes.Changed)
	require.False(t, setRes.HasOld)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{ReadSwap: true, Unmarshal: true, UpdateStats: true})
	require.NoError(t, err)
	require.True(t, getRes.Found)
	require.Equal(t, "v1", getRes.Value)

	isNew, err := c.IsNew()
	require.NoError(t, err)
	require.False(t, isNew, "a cell that has committed a write is no longer new")
}

// A filter that rejects the current value must leave the cell unchanged
// and report the failure through InnerRemove's sentinel error.
func TestCell_RemoveFilterFailed(t *testing.T) {
	c := newTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	rejectAll := func(e InvokeEntry[string, string]) bool { return false }
	_, err = c.InnerRemove(ctx, nil, rejectAll)
	require.ErrorIs(t, err, ErrFilterFailed)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{ReadSwap: true})
	require.NoError(t, err)
	require.True(t, getRes.Found)
	require.Equal(t, "v1", getRes.Value, "rejected remove must not touch the value")
}

// InnerRemove with no filter deletes an existing value and, outside of
// deferred-delete mode, marks the cell obsolete once the remove version
// is still current — any further operation must observe ErrRemoved.
func TestCell_RemoveThenObsolete(t *testing.T) {
	c := newTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	removeRes, err := c.InnerRemove(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, removeRes.Changed)
	require.Equal(t, "v1", removeRes.OldValue)

	require.True(t, c.Obsolete())

	_, err = c.InnerGet(ctx, nil, GetFlags{})
	require.ErrorIs(t, err, ErrRemoved)
}

// Per-entry TTL must be enforced lazily on read: a fresh write is found
// immediately, and an expired one reports not-found.
func TestCell_TTLExpiresLazily(t *testing.T) {
	clk := &fakeClock{}
	c := newTestCell(t, clk)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1", TTL: 100 * time.Millisecond})
	require.NoError(t, err)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.True(t, getRes.Found)

	clk.add(200 * time.Millisecond)

	getRes, err = c.InnerGet(ctx, nil, GetFlags{UpdateStats: true})
	require.NoError(t, err)
	require.False(t, getRes.Found, "a cell past its expire time must report not-found on read")
}

// InnerUpdateLocal with a transform processor must apply exactly the
// Modified/NewValue/HasNew the processor returns, and deleting via
// HasNew=false must mark the cell obsolete the same as InnerRemove.
func TestCell_InvokeTransformThenDelete(t *testing.T) {
	c := newTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "1"})
	require.NoError(t, err)

	incr := EntryProcessor[string, string](func(e InvokeEntry[string, string]) ProcessResult[string] {
		cur, _ := e.Value()
		return ProcessResult[string]{Modified: true, NewValue: cur + "1", HasNew: true}
	})
	updRes, err := c.InnerUpdateLocal(ctx, UpdateArgs[string, string]{Op: OpTransform, Processor: incr})
	require.NoError(t, err)
	require.True(t, updRes.CommitHappened)
	require.True(t, updRes.HasNew)
	require.Equal(t, "11", updRes.NewValue)

	del := EntryProcessor[string, string](func(e InvokeEntry[string, string]) ProcessResult[string] {
		return ProcessResult[string]{Modified: true, HasNew: false}
	})
	updRes, err = c.InnerUpdateLocal(ctx, UpdateArgs[string, string]{Op: OpTransform, Processor: del})
	require.NoError(t, err)
	require.True(t, updRes.CommitHappened)
	require.False(t, updRes.HasNew)
	require.True(t, c.Obsolete(), "dropping to HasNew=false must obsolete the cell like InnerRemove")
}

// A transaction that declared a group lock on a different key must be
// rejected with the sanity-assert error kind before any mutation happens.
func TestCell_GroupLockSanityCheck(t *testing.T) {
	c := newTestCell(t, nil)
	ctx := context.Background()

	txn := tx.New("t1", true)
	txn.SetGroupLock("some-other-key")

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Tx: txn, Value: "v1"})
	var sanityErr *ErrSanityAssert
	require.ErrorAs(t, err, &sanityErr)

	isNew, ierr := c.IsNew()
	require.NoError(t, ierr)
	require.True(t, isNew, "a rejected group-locked write must not mutate the cell")
}

// MarkObsolete is idempotent: calling it twice with two different
// versions must not panic and must keep reporting obsolete.
func TestCell_MarkObsoleteIdempotent(t *testing.T) {
	c := newTestCell(t, nil)

	v1 := version.Version{Order: 1, NodeOrder: 1}
	v2 := version.Version{Order: 2, NodeOrder: 1}

	require.True(t, c.MarkObsolete(v1))
	require.True(t, c.MarkObsolete(v2))
	require.True(t, c.Obsolete())
}

// EvictInternal must obsolete and clear a cell with no blocking MVCC
// candidates, and a second call on an already-obsolete cell is a no-op
// that still reports success.
func TestCell_EvictInternal(t *testing.T) {
	c := newTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	ver := version.Version{Order: 5, NodeOrder: 1}
	ok, err := c.EvictInternal(ctx, false, ver, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, c.Obsolete())

	ok, err = c.EvictInternal(ctx, false, ver, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

// A write followed by a read must emit exactly one PUT event and exactly
// one READ event — no duplicates, no extras from internal bookkeeping.
func TestCell_SetThenGetEmitsExactlyOnePutAndOneRead(t *testing.T) {
	bus := &recordingEventBus[string, string]{}
	c := newTestCellWithContext(t, func(cctx *Context[string, string]) {
		cctx.EventBus = bus
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{ReadSwap: true, EmitEvent: true})
	require.NoError(t, err)
	require.True(t, getRes.Found)

	require.Equal(t, 1, bus.countOf(EventPut))
	require.Equal(t, 1, bus.countOf(EventRead))
	require.Equal(t, 0, bus.countOf(EventExpired))
	require.Equal(t, 0, bus.countOf(EventRemoved))
}

// An entry that has expired by the time it is read must emit exactly one
// EXPIRED event and no READ event — the expired branch short-circuits
// before the read-hit bookkeeping runs.
func TestCell_ExpiredReadEmitsExactlyOneExpiredAndNoRead(t *testing.T) {
	clk := &fakeClock{}
	bus := &recordingEventBus[string, string]{}
	c := newTestCellWithContext(t, func(cctx *Context[string, string]) {
		cctx.Clock = clk
		cctx.EventBus = bus
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1", TTL: 50 * time.Millisecond})
	require.NoError(t, err)
	clk.add(100 * time.Millisecond)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{ReadSwap: true, EmitEvent: true})
	require.NoError(t, err)
	require.False(t, getRes.Found)

	require.Equal(t, 1, bus.countOf(EventPut))
	require.Equal(t, 1, bus.countOf(EventExpired))
	require.Equal(t, 0, bus.countOf(EventRead))
}
