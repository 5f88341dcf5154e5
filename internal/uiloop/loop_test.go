package uiloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := New("order")
	defer l.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 20 {
		require.NoError(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_DoReturnsError(t *testing.T) {
	l := New("err")
	defer l.Stop()

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return boom }), boom)
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	l := New("stop")
	l.Stop()

	assert.True(t, l.Stopped())
	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), ErrStopped)

	// Stop is idempotent.
	l.Stop()
}

func TestLoop_StopDrainsQueuedWork(t *testing.T) {
	l := New("drain")

	ran := make(chan struct{}, 1)
	require.NoError(t, l.Post(func() {
		time.Sleep(10 * time.Millisecond)
		ran <- struct{}{}
	}))
	l.Stop()

	select {
	case <-ran:
	default:
		t.Fatal("queued work was dropped")
	}
}

func TestLoop_PanicIsReported(t *testing.T) {
	l := New("panic")
	defer l.Stop()

	err := l.Do(context.Background(), func() error { panic("bad") })
	assert.ErrorContains(t, err, "panic on ui loop panic")
	assert.NoError(t, l.Do(context.Background(), func() error { return nil }))
}

func TestLoop_DoSkipsWorkAbandonedInQueue(t *testing.T) {
	l := New("abandon")
	defer l.Stop()

	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	err := l.Do(ctx, func() error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))
	assert.False(t, ran.Load())
}

func TestLoop_DoWaitsForStartedWork(t *testing.T) {
	l := New("started")
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	err := l.Do(ctx, func() error {
		close(started)
		cancel()
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	<-started
	assert.NoError(t, err)
}
