package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExecutesImmediately(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 1)
	job := NewJob("count", func(ctx context.Context) error {
		runs.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(time.Hour, time.Second).Run(ctx, job) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run immediately")
	}
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRun_RepeatsOnInterval(t *testing.T) {
	var runs atomic.Int32
	job := NewJob("count", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, New(time.Second, time.Second).Run(ctx, job))
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestRun_SkipsOverlappingRuns(t *testing.T) {
	var running, maxRunning, runs atomic.Int32
	job := NewJob("slow", func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		runs.Add(1)
		time.Sleep(2600 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, New(time.Second, 3*time.Second).Run(ctx, job))
	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Equal(t, int32(1), runs.Load())
}

func TestRun_JobErrorsDoNotStopScheduler(t *testing.T) {
	var runs atomic.Int32
	job := NewJob("failing", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, New(time.Second, time.Second).Run(ctx, job))
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestRun_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	job := NewJob("stuck", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(time.Hour, 50*time.Millisecond).Run(ctx, job) }()

	<-started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrShutdownTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not honour the shutdown timeout")
	}
}

func TestRun_CancelReachesJob(t *testing.T) {
	started := make(chan struct{})
	job := NewJob("wait", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(time.Hour, time.Second).Run(ctx, job) }()

	<-started
	cancel()
	assert.NoError(t, <-done)
}

func TestRun_InvalidInterval(t *testing.T) {
	job := NewJob("noop", func(ctx context.Context) error { return nil })
	assert.Error(t, New(0, time.Second).Run(context.Background(), job))
}
