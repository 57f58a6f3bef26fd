package entry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridkv/entrycell/expiry"
)

// A Sliding policy must push the expire time forward on every read, not
// only at creation: an entry accessed more recently than its TTL must
// still be found even though more than one TTL has elapsed since it was
// first written.
func TestInnerGet_SlidingExpiryExtendsTTLOnAccess(t *testing.T) {
	clk := &fakeClock{}
	c := newTestCellWithContext(t, func(cctx *Context[string, string]) {
		cctx.Clock = clk
		cctx.Expiry = expiry.Sliding{TTL: 100 * time.Millisecond}
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)
	require.Equal(t, 100*time.Millisecond, func() time.Duration {
		c.lock()
		defer c.unlock()
		return c.ext.fields().ttl
	}(), "InnerSet with no explicit TTL must take ForCreate from the policy")

	clk.add(60 * time.Millisecond)
	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.True(t, getRes.Found, "an access inside the TTL window must refresh it")

	clk.add(80 * time.Millisecond) // 140ms since creation, but only 80ms since the last access
	getRes, err = c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.True(t, getRes.Found, "sliding expiry must have pushed the deadline forward on the first access")
}

// A Fixed policy's ForCreate must supply the TTL when InnerSet is not
// given an explicit one.
func TestInnerSet_FixedExpiryAssignsTTLOnCreate(t *testing.T) {
	clk := &fakeClock{}
	c := newTestCellWithContext(t, func(cctx *Context[string, string]) {
		cctx.Clock = clk
		cctx.Expiry = expiry.Fixed{TTL: 50 * time.Millisecond}
	})
	ctx := context.Background()

	_, err := c.InnerSet(ctx, SetArgs[string, string]{Value: "v1"})
	require.NoError(t, err)
	require.Equal(t, clk.NowUnixNano()+int64(50*time.Millisecond), c.ExpireTime())

	clk.add(60 * time.Millisecond)
	getRes, err := c.InnerGet(ctx, nil, GetFlags{})
	require.NoError(t, err)
	require.False(t, getRes.Found, "Fixed.ForAccess reports NotChanged, so access must not extend the deadline")
}

// recordingSizeAccountant keeps a running total and the list of deltas it
// was handed.
type recordingSizeAccountant struct {
	deltas []int64
	total  int64
}

func (a *recordingSizeAccountant) AdjustSize(delta int64) {
	a.deltas = append(a.deltas, delta)
	a.total += delta
}

// A set_value on a key IsBlockKeyFunc recognizes as a block key must
// report the serialized-size delta to the configured SizeAccountant; a
// key it doesn't recognize must be left alone entirely.
func TestInnerSet_SizeAccountantReportsDeltaForBlockKeysOnly(t *testing.T) {
	acct := &recordingSizeAccountant{}
	cctx := DefaultContext[string, string]()
	cctx.SizeAcct = acct
	cctx.IsBlockKeyFunc = func(key string) bool { return strings.HasPrefix(key, "blk:") }

	ctx := context.Background()

	blockCell := New(cctx, "blk:1", 1, false, "", 0)
	_, err := blockCell.InnerSet(ctx, SetArgs[string, string]{Value: "x"})
	require.NoError(t, err)
	require.Len(t, acct.deltas, 1, "a block-keyed create must report its size exactly once")
	require.Equal(t, acct.deltas[0], acct.total)
	firstDelta := acct.total

	_, err = blockCell.InnerSet(ctx, SetArgs[string, string]{Value: "a much longer replacement value"})
	require.NoError(t, err)
	require.Len(t, acct.deltas, 2)
	require.Greater(t, acct.total, firstDelta, "growing the value must report a positive delta")

	plainCell := New(cctx, "plain-key", 2, false, "", 0)
	_, err = plainCell.InnerSet(ctx, SetArgs[string, string]{Value: "y"})
	require.NoError(t, err)
	require.Len(t, acct.deltas, 2, "a non-block key must never touch the size accountant")
}
