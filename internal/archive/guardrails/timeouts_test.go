package guardrails

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithHour_ZeroMeansNoLimit(t *testing.T) {
	ctx, cancel := WithHour(context.Background(), Timeouts{})
	defer cancel()
	_, ok := ctx.Deadline()
	require.False(t, ok)
}

func TestForFetch_RespectsParentDeadline(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelParent()

	ctx, cancel := ForFetch(parent, Timeouts{Fetch: time.Hour})
	defer cancel()

	dl, ok := ctx.Deadline()
	require.True(t, ok)
	require.True(t, time.Until(dl) <= 10*time.Millisecond)
}

func TestForDecode_TighterThanParent(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()

	ctx, cancel := ForDecode(parent, Timeouts{Decode: 5 * time.Millisecond})
	defer cancel()

	dl, ok := ctx.Deadline()
	require.True(t, ok)
	require.True(t, time.Until(dl) <= 5*time.Millisecond)
}

func TestRemaining(t *testing.T) {
	require.Equal(t, time.Duration(0), Remaining(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.True(t, Remaining(ctx) > 0)

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	require.Equal(t, time.Duration(0), Remaining(expired))
}
