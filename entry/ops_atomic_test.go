package entry

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gridkv/entrycell/version"
)

// swapStub hands back one fixed SwapEntry on ReadAndRemove and otherwise
// behaves like NoopSwapManager, counting calls so tests can assert
// exactly which swap-tier operations a code path triggered.
type swapStub[K comparable, V any] struct {
	entry *SwapEntry

	reads                int
	writes               int
	removeOffHeapCalls   int
	enableEvictionCalls  int
	evictionEnabled      bool
}

func (s *swapStub[K, V]) Read(K, bool, bool, bool) (*SwapEntry, error) { return nil, nil }
func (s *swapStub[K, V]) ReadAndRemove(K) (*SwapEntry, error) {
	s.reads++
	return s.entry, nil
}
func (s *swapStub[K, V]) ReadOffHeapPointer(K) (*SwapEntry, error) { return nil, nil }
func (s *swapStub[K, V]) Write(K, []byte, byte, version.Version, time.Duration, int64, string, string) error {
	s.writes++
	return nil
}
func (s *swapStub[K, V]) Remove(K) error { return nil }
func (s *swapStub[K, V]) RemoveOffHeap(K) error {
	s.removeOffHeapCalls++
	return nil
}
func (s *swapStub[K, V]) OffHeapEvictionEnabled() bool { return s.evictionEnabled }
func (s *swapStub[K, V]) EnableOffHeapEviction(K) error {
	s.enableEvictionCalls++
	s.evictionEnabled = true
	return nil
}

func newUpdateTestCell(t *testing.T, configure func(*Context[string, string])) *Cell[string, string] {
	t.Helper()
	cctx := DefaultContext[string, string]()
	if configure != nil {
		configure(cctx)
	}
	return New(cctx, "k", 1, false, "", 0)
}

// fakeConflictResolver hands back a fixed verdict and counts how many
// times it was consulted.
type fakeConflictResolver[K comparable, V any] struct {
	outcome ConflictOutcome
	merged  V
	calls   int
}

func (f *fakeConflictResolver[K, V]) Resolve(key K, oldSide, newSide ConflictSide[V], verCheck bool) ConflictResult[V] {
	f.calls++
	return ConflictResult[V]{Outcome: f.outcome, Merged: f.merged}
}

// InnerUpdate's version-check branch must reject a write whose NewVer is
// not strictly newer than the cell's current version, leaving the value
// untouched.
func TestInnerUpdate_VerCheckRejectsStaleVersion(t *testing.T) {
	c := newUpdateTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	stale := version.Version{Order: 1, NodeOrder: 1}
	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{
		Op: OpUpdate, WriteObj: "v2", NewVer: &stale, VerCheck: true,
	})
	require.NoError(t, err)
	require.False(t, res.CommitHappened)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.Equal(t, "v1", getRes.Value, "a stale version must not overwrite the current value")
}

// A version-checked write that is genuinely newer than the cell's current
// version must commit.
func TestInnerUpdate_VerCheckAcceptsNewerVersion(t *testing.T) {
	c := newUpdateTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	fresh := version.Version{Order: 100, NodeOrder: 1}
	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{
		Op: OpUpdate, WriteObj: "v2", NewVer: &fresh, VerCheck: true,
	})
	require.NoError(t, err)
	require.True(t, res.CommitHappened)
	require.Equal(t, "v2", res.NewValue)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.Equal(t, "v2", getRes.Value)
}

// A ConflictMerge verdict must replace the write with the resolver's
// merged value rather than the caller's original WriteObj.
func TestInnerUpdate_ConflictResolverMergeWins(t *testing.T) {
	resolver := &fakeConflictResolver[string, string]{outcome: ConflictMerge, merged: "merged"}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.ConflictEnabled = true
		cctx.Conflict = resolver
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	nv := version.Version{Order: 50, NodeOrder: 1}
	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{
		Op: OpUpdate, WriteObj: "v2", NewVer: &nv, ConflictResolve: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resolver.calls)
	require.True(t, res.CommitHappened)
	require.Equal(t, "merged", res.NewValue)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.Equal(t, "merged", getRes.Value)
}

// A ConflictUseOld verdict must leave the current value untouched and
// report no commit.
func TestInnerUpdate_ConflictResolverUseOldKeepsCurrentValue(t *testing.T) {
	resolver := &fakeConflictResolver[string, string]{outcome: ConflictUseOld}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.ConflictEnabled = true
		cctx.Conflict = resolver
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	nv := version.Version{Order: 50, NodeOrder: 1}
	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{
		Op: OpUpdate, WriteObj: "v2", NewVer: &nv, ConflictResolve: true,
	})
	require.NoError(t, err)
	require.False(t, res.CommitHappened)
	require.Equal(t, "v1", res.OldValue)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.Equal(t, "v1", getRes.Value, "ConflictUseOld must leave the current value untouched")
}

// Under DeferredDelete, InnerUpdate's DELETE path must tombstone the cell
// and hand the caller a version to enqueue for the sweeper, rather than
// obsoleting the cell immediately.
func TestInnerUpdate_DeferredDeleteEnqueuesTombstone(t *testing.T) {
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.DeferredDelete = true
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{Op: OpDelete})
	require.NoError(t, err)
	require.True(t, res.CommitHappened)
	require.False(t, res.HasNew)
	require.NotNil(t, res.EnqueueDeferred)

	require.True(t, c.Deleted())
	require.False(t, c.Obsolete(), "a deferred delete must tombstone, not obsolete, the cell")

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.False(t, getRes.Found)
}

// A non-new cell holding no current value (e.g. post-remove under
// deferred-delete, not yet swept) receiving an ordinary forward atomic
// update must not rehydrate a stale swapped-out value: the unswap guard
// only fires for cells still at their construction version.
func TestInnerUpdate_DoesNotUnswapNonNewValuelessCell(t *testing.T) {
	stale := &swapStub[string, string]{entry: &SwapEntry{
		Bytes:   []byte(`"stale"`),
		TypeTag: typeTagMarshaled,
		Version: version.Version{Order: 1, NodeOrder: 1},
	}}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.DeferredDelete = true
		cctx.Swap = stale
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)
	_, err = c.InnerRemove(ctx, nil, nil)
	require.NoError(t, err)
	require.False(t, c.Obsolete(), "DeferredDelete must tombstone, not obsolete, on remove")
	require.False(t, c.isNewLocked(), "the cell must no longer be new after a committed write and remove")

	fresh := version.Version{Order: 1000, NodeOrder: 1}
	readsBefore := stale.reads
	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{
		Op: OpUpdate, WriteObj: "v2", NewVer: &fresh,
	})
	require.NoError(t, err)
	require.True(t, res.CommitHappened)
	require.Equal(t, "v2", res.NewValue)
	require.False(t, res.HasOld, "the pre-update read must see no value — unswap must not have rehydrated the stale swap entry")
	require.Equal(t, readsBefore, stale.reads, "a non-new cell must never consult the swap tier from InnerUpdate's unswap guard")
}

// A forward, non-conflict, non-deferred InnerUpdate must commit exactly
// the result shape callers expect. Diffed with go-cmp rather than a
// handful of separate require.Equal calls, so a stray field creeping
// into UpdateResult's zero-value defaults shows up as a single diff.
func TestInnerUpdate_ResultShapeMatchesExpectedSnapshot(t *testing.T) {
	c := newUpdateTestCell(t, nil)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	nv := version.Version{Order: 50, NodeOrder: 1}
	res, err := c.InnerUpdate(ctx, UpdateArgs[string, string]{Op: OpUpdate, WriteObj: "v2", NewVer: &nv})
	require.NoError(t, err)

	want := UpdateResult[string]{
		Success:        true,
		OldValue:       "v1",
		HasOld:         true,
		NewValue:       "v2",
		HasNew:         true,
		CommitHappened: true,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("InnerUpdate result mismatch (-want +got):\n%s", diff)
	}
}
