package entry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Swap on a live, non-expired cell must write the current value to swap
// and clear the heap slot.
func TestSwap_WritesAndClearsLiveValue(t *testing.T) {
	stub := &swapStub[string, string]{}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.Swap = stub
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)

	require.NoError(t, c.Swap())
	require.Equal(t, 1, stub.writes)

	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.False(t, getRes.Found, "Swap must clear the heap slot")
}

// Swap on a tombstoned (deleted but not yet obsolete) cell must not write
// to swap at all.
func TestSwap_NoopOnDeletedCell(t *testing.T) {
	stub := &swapStub[string, string]{}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.Swap = stub
		cctx.DeferredDelete = true
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)
	_, err = c.InnerRemove(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, c.Deleted())

	require.NoError(t, c.Swap())
	require.Equal(t, 0, stub.writes, "a tombstoned cell must never be written to swap")
}

// Swap on an entry that has already expired must release its off-heap
// copy instead of writing the stale value out.
func TestSwap_ExpiredCellRemovesOffHeapInsteadOfWriting(t *testing.T) {
	stub := &swapStub[string, string]{}
	clk := &fakeClock{}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.Swap = stub
		cctx.Clock = clk
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1", TTL: 10 * time.Millisecond})
	require.NoError(t, err)
	clk.add(50 * time.Millisecond)

	require.NoError(t, c.Swap())
	require.Equal(t, 0, stub.writes)
	require.Equal(t, 1, stub.removeOffHeapCalls)
}

// Swap on an already off-heap-only value must not duplicate the write —
// it only re-enables off-heap eviction.
func TestSwap_OffHeapOnlyValueSkipsDuplicateWrite(t *testing.T) {
	stub := &swapStub[string, string]{}
	c := newUpdateTestCell(t, func(cctx *Context[string, string]) {
		cctx.Swap = stub
	})

	c.lock()
	c.slot.setOffHeap(nil)
	c.unlock()

	require.NoError(t, c.Swap())
	require.Equal(t, 0, stub.writes)
	require.Equal(t, 1, stub.enableEvictionCalls)
	require.True(t, stub.evictionEnabled)
}
