//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/nidhogg/findit/internal/match"
	"github.com/nidhogg/findit/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb, err := Dial(ctx, testenv.Redis(t))
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	bus := NewBus(rdb, 100, zap.NewNop())

	subCtx, stop := context.WithCancel(ctx)
	ch := bus.Subscribe(subCtx)
	// give XREAD a moment to block on "$"
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, NewMatchesFound("l1", "lost", []match.Result{
		{CandidateID: "f1", PairKey: "f1_l1", Score: 77},
	})))

	select {
	case ev := <-ch:
		require.NotNil(t, ev)
		assert.Equal(t, "l1", ev.ItemID)
		require.Len(t, ev.Candidates, 1)
		assert.Equal(t, 77.0, ev.Candidates[0].Score)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	stop()
	for range ch {
	}
}
