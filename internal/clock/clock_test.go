package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/clock"
)

func TestSleep_Elapses(t *testing.T) {
	start := time.Now()
	require.NoError(t, clock.Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleep_CancelledPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := clock.Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleep_ZeroDuration(t *testing.T) {
	assert.NoError(t, clock.Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, clock.Sleep(ctx, 0), context.Canceled)
}

func TestToday_UsesReferenceZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 01:30 UTC on March 10 is still March 9 in São Paulo (UTC-3).
	c := clock.Fixed{T: time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)}
	today := clock.Today(c, loc)

	assert.Equal(t, 9, today.Day())
	assert.Equal(t, time.March, today.Month())
	assert.Equal(t, 0, today.Hour())
}
