package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksUntilCanceled(t *testing.T) {
	var runs atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- Loop(ctx, Config{
			Name: "test",
			Tasks: []Task{
				{
					Name:     "count",
					Interval: 20 * time.Millisecond,
					Run:      func(context.Context) { runs.Add(1) },
				},
			},
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoop_OnStopCalled(t *testing.T) {
	stopped := false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Loop(ctx, Config{
		Name:   "test",
		OnStop: func() { stopped = true },
	})

	require.Error(t, err)
	assert.True(t, stopped)
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}
