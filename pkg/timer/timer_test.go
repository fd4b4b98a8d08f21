package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimerFiresTask tests end-to-end dispatch on the worker goroutine
func TestTimerFiresTask(t *testing.T) {
	tm, err := NewTimer(5*time.Millisecond, 64)
	require.NoError(t, err)
	defer tm.Stop()

	fired := make(chan *Timeout, 1)
	timeout := tm.NewTimeout(func(to *Timeout) { fired <- to }, 20*time.Millisecond, false)

	select {
	case to := <-fired:
		assert.Same(t, timeout, to)
		assert.True(t, timeout.IsExpired())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}
}

// TestTimerPeriodicFiresRepeatedly tests periodic dispatch and cancel
func TestTimerPeriodicFiresRepeatedly(t *testing.T) {
	tm, err := NewTimer(5*time.Millisecond, 64)
	require.NoError(t, err)
	defer tm.Stop()

	var count atomic.Int32
	timeout := tm.NewTimeout(func(*Timeout) { count.Add(1) }, 10*time.Millisecond, true)

	assert.Eventually(t, func() bool { return count.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)

	timeout.Cancel()
	assert.True(t, timeout.IsCancelled())

	// Cancel is idempotent
	timeout.Cancel()

	time.Sleep(30 * time.Millisecond)
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, count.Load(), "periodic kept firing after cancel")
}

// TestTimerCancelBeforeFire tests that a cancelled timeout never runs
func TestTimerCancelBeforeFire(t *testing.T) {
	tm, err := NewTimer(5*time.Millisecond, 64)
	require.NoError(t, err)
	defer tm.Stop()

	var fired atomic.Bool
	timeout := tm.NewTimeout(func(*Timeout) { fired.Store(true) }, 100*time.Millisecond, false)
	timeout.Cancel()

	time.Sleep(200 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.True(t, timeout.IsCancelled())
}

// TestTimerCancelByID tests id-based cancellation through the facade
func TestTimerCancelByID(t *testing.T) {
	tm, err := NewTimer(5*time.Millisecond, 64)
	require.NoError(t, err)
	defer tm.Stop()

	var fired atomic.Bool
	timeout := tm.NewTimeout(func(*Timeout) { fired.Store(true) }, 150*time.Millisecond, false)

	// Give the worker a moment to place it and assign the id
	assert.Eventually(t, func() bool { return timeout.ID() != 0 },
		time.Second, time.Millisecond)

	tm.CancelByID(timeout.ID(), false)

	time.Sleep(250 * time.Millisecond)
	assert.False(t, fired.Load())
}

// TestTimerStopReturnsUnprocessed tests shutdown semantics
func TestTimerStopReturnsUnprocessed(t *testing.T) {
	tm, err := NewTimer(10*time.Millisecond, 64)
	require.NoError(t, err)

	tm.NewTimeout(func(*Timeout) {}, time.Hour, false)
	tm.NewTimeout(func(*Timeout) {}, time.Hour, false)

	// Let the worker place them
	time.Sleep(50 * time.Millisecond)

	unprocessed := tm.Stop()
	assert.Len(t, unprocessed, 2)

	// Stopping twice is safe
	assert.Nil(t, tm.Stop())

	// Scheduling after stop is a silent no-op
	timeout := tm.NewTimeout(func(*Timeout) {}, time.Millisecond, false)
	assert.NotNil(t, timeout)
	assert.False(t, tm.CancelByID(1, false))
}

// TestTimerPanickingTaskSurvives tests that a user panic does not kill the
// timer and a periodic task stays scheduled
func TestTimerPanickingTaskSurvives(t *testing.T) {
	tm, err := NewTimer(5*time.Millisecond, 64)
	require.NoError(t, err)
	defer tm.Stop()

	var count atomic.Int32
	tm.NewTimeout(func(*Timeout) {
		count.Add(1)
		panic("user task bug")
	}, 10*time.Millisecond, true)

	assert.Eventually(t, func() bool { return count.Load() >= 2 },
		2*time.Second, 5*time.Millisecond)
}
