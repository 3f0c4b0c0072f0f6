package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}

func TestControllerTransitions(t *testing.T) {
	var c controller

	assert.ErrorIs(t, c.pause(), ErrInvalidTransition, "pause while idle")
	assert.ErrorIs(t, c.resume(), ErrInvalidTransition, "resume while idle")
	assert.ErrorIs(t, c.requestStop(), ErrInvalidTransition, "stop while idle")

	require.NoError(t, c.begin(ModeBulk))
	state, mode := c.snapshot()
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, ModeBulk, mode)
	assert.ErrorIs(t, c.begin(ModeIncremental), ErrInvalidTransition, "only one pass runs")
	assert.ErrorIs(t, c.resume(), ErrInvalidTransition, "resume while running")

	require.NoError(t, c.pause())
	state, _ = c.snapshot()
	assert.Equal(t, StatePaused, state)
	assert.ErrorIs(t, c.pause(), ErrInvalidTransition, "pause while paused")

	require.NoError(t, c.resume())
	state, _ = c.snapshot()
	assert.Equal(t, StateRunning, state)

	c.finish()
	state, mode = c.snapshot()
	assert.Equal(t, StateIdle, state)
	assert.Equal(t, ModeNone, mode)
}

func TestCheckpointBlocksWhilePaused(t *testing.T) {
	var c controller
	require.NoError(t, c.begin(ModeBulk))
	require.NoError(t, c.pause())

	result := make(chan bool, 1)
	go func() {
		stop, err := c.checkpoint(context.Background())
		assert.NoError(t, err)
		result <- stop
	}()

	select {
	case <-result:
		t.Fatal("checkpoint returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.resume())
	assert.False(t, <-result)
}

func TestCheckpointStopWakesPaused(t *testing.T) {
	var c controller
	require.NoError(t, c.begin(ModeIncremental))
	require.NoError(t, c.pause())

	result := make(chan bool, 1)
	go func() {
		stop, _ := c.checkpoint(context.Background())
		result <- stop
	}()

	require.NoError(t, c.requestStop())
	assert.True(t, <-result)
}

func TestCheckpointCancelled(t *testing.T) {
	var c controller
	require.NoError(t, c.begin(ModeBulk))
	require.NoError(t, c.pause())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.checkpoint(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "bulk", ModeBulk.String())
	assert.Equal(t, "incremental", ModeIncremental.String())
	assert.Equal(t, "none", ModeNone.String())
}
