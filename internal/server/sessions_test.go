package server

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"atmdapp/internal/dapp"
)

func TestSessionRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	clk := clock.NewMock()
	var sizes []int
	r := newSessionRegistry(&dapp.Env{Log: zaptest.NewLogger(t)}, clk, time.Second, time.Hour, 2,
		func(n int) { sizes = append(sizes, n) })
	ctx := context.Background()

	a := r.get(ctx, "a")
	clk.Add(time.Second)
	b := r.get(ctx, "b")
	clk.Add(time.Second)
	require.Same(t, a, r.get(ctx, "a"))

	clk.Add(time.Second)
	r.get(ctx, "c")
	require.Equal(t, 2, r.size())
	require.Same(t, a, r.get(ctx, "a"))
	require.NotSame(t, b, r.get(ctx, "b"), "b was evicted and starts over")
	require.Equal(t, []int{1, 2, 2, 2}, sizes)
}

func TestSessionRegistryDropsIdleSessions(t *testing.T) {
	clk := clock.NewMock()
	r := newSessionRegistry(&dapp.Env{Log: zaptest.NewLogger(t)}, clk, time.Second, time.Minute, 0, nil)
	ctx := context.Background()

	r.get(ctx, "a")
	clk.Add(2 * time.Minute)
	r.get(ctx, "b")
	require.Equal(t, 1, r.size())
}
