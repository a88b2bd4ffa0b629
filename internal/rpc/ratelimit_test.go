package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstIsOneSecondPlusOne(t *testing.T) {
	t.Parallel()
	l := NewLimiter(2)
	assert.Equal(t, 3, l.burst)
	assert.InDelta(t, 3.0, l.bucket("frame").Tokens(), 0.01)
}

func TestLimiter_BucketsPerConnector(t *testing.T) {
	t.Parallel()
	l := NewLimiter(0.001)
	ctx := testContext(t)

	require.NoError(t, l.Wait(ctx, "frame"))
	assert.Less(t, l.bucket("frame").Tokens(), 1.0)

	// Another connector still has its full burst.
	require.NoError(t, l.Wait(ctx, "hardware"))
}

func TestLimiter_WaitCanceled(t *testing.T) {
	t.Parallel()
	l := NewLimiter(0.001)
	require.NoError(t, l.Wait(testContext(t), "frame"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "frame"))
}

func TestLimiter_ReleaseRestoresBurst(t *testing.T) {
	t.Parallel()
	l := NewLimiter(0.001)
	require.NoError(t, l.Wait(testContext(t), "frame"))

	l.Release("frame")
	assert.InDelta(t, 1.0, l.bucket("frame").Tokens(), 0.01)
}
