package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeSleepAdvances(t *testing.T) {
	f := NewFake(epoch)
	ctx := context.Background()

	require.NoError(t, f.Sleep(ctx, time.Second))
	require.NoError(t, f.Sleep(ctx, 2*time.Second))
	f.Advance(500 * time.Millisecond)

	assert.Equal(t, epoch.Add(3500*time.Millisecond), f.Now())
	assert.Equal(t, 3500*time.Millisecond, f.Elapsed())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.Sleeps())
}

func TestFakeSleepCanceled(t *testing.T) {
	f := NewFake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
	assert.Zero(t, f.Elapsed())
	assert.Empty(t, f.Sleeps())
}

func TestRealSleep(t *testing.T) {
	c := Real()
	before := c.Now()
	require.NoError(t, c.Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, c.Now().Sub(before), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)
}
