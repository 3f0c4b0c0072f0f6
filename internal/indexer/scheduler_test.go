package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	env := setupMaintainer(t)

	s, err := NewScheduler(context.Background(), env.m)
	require.NoError(t, err)
	s.Start()
	s.Stop()

	env.m.cfg.Schedule = "every so often"
	_, err = NewScheduler(context.Background(), env.m)
	assert.Error(t, err)
}

func TestScheduledRunDroppedWhileIndexing(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")

	require.True(t, env.m.lock.TryAcquire())
	env.m.scheduledRun(context.Background())
	env.m.lock.Release()

	assert.Equal(t, 0, env.emb.count())
	assert.Nil(t, env.m.Status().LastRun)
}

func TestScheduledRun(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")

	env.m.scheduledRun(context.Background())
	require.NotNil(t, env.m.Status().LastRun)
	assert.Equal(t, 1, env.m.Status().LastRun.Embedded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.put("a.md", "alpha changed")
	env.m.scheduledRun(ctx)
	assert.Equal(t, 1, env.emb.count(), "cancelled context skips the run")
}
