package room

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	fired := make(chan struct{})

	s.Schedule(GroupKey(), 10*time.Millisecond, func(ctx context.Context) (time.Duration, bool) {
		close(fired)
		return 0, false
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task never fired")
	}

	require.Eventually(t, func() bool { return s.Live() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerReplaceCancelsOldTask(t *testing.T) {
	s := NewScheduler()
	var oldFired, newFired atomic.Int32

	s.Schedule(GroupKey(), 50*time.Millisecond, func(ctx context.Context) (time.Duration, bool) {
		oldFired.Add(1)
		return 0, false
	})
	s.Schedule(GroupKey(), 10*time.Millisecond, func(ctx context.Context) (time.Duration, bool) {
		newFired.Add(1)
		return 0, false
	})

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), oldFired.Load(), "replaced task must not fire")
	assert.Equal(t, int32(1), newFired.Load())
}

func TestSchedulerReplaceAwaitsRunningFire(t *testing.T) {
	s := NewScheduler()
	release := make(chan struct{})
	started := make(chan struct{})

	s.Schedule(GroupKey(), time.Millisecond, func(ctx context.Context) (time.Duration, bool) {
		close(started)
		<-release
		return 0, false
	})
	<-started

	replaced := make(chan struct{})
	go func() {
		s.Schedule(GroupKey(), time.Hour, func(ctx context.Context) (time.Duration, bool) {
			return 0, false
		})
		close(replaced)
	}()

	select {
	case <-replaced:
		t.Fatal("Schedule returned while the old fire was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-replaced:
	case <-time.After(time.Second):
		t.Fatal("Schedule never returned after the old fire finished")
	}
	s.CancelAll()
}

func TestSchedulerSelfContinuation(t *testing.T) {
	s := NewScheduler()
	var fires atomic.Int32

	s.Schedule(PerformerKey("alice"), 5*time.Millisecond, func(ctx context.Context) (time.Duration, bool) {
		if fires.Add(1) >= 3 {
			return 0, false
		}
		return 5 * time.Millisecond, true
	})

	require.Eventually(t, func() bool { return fires.Load() == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Live() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), fires.Load())
}

func TestSchedulerCancelAwaitsTermination(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Int32

	s.Schedule(GroupKey(), time.Hour, func(ctx context.Context) (time.Duration, bool) {
		fired.Add(1)
		return 0, false
	})
	require.True(t, s.Scheduled(GroupKey()))

	s.Cancel(GroupKey())
	assert.False(t, s.Scheduled(GroupKey()))
	assert.Equal(t, 0, s.Live())
	assert.Equal(t, int32(0), fired.Load())
}

func TestSchedulerCancelAll(t *testing.T) {
	s := NewScheduler()
	noop := func(ctx context.Context) (time.Duration, bool) { return 0, false }

	s.Schedule(GroupKey(), time.Hour, noop)
	s.Schedule(PerformerKey("alice"), time.Hour, noop)
	s.Schedule(PerformerKey("bob"), time.Hour, noop)
	require.Equal(t, 3, s.Live())

	s.CancelAll()
	assert.Equal(t, 0, s.Live())
}

func TestSchedulerOneTimerPerKey(t *testing.T) {
	s := NewScheduler()
	noop := func(ctx context.Context) (time.Duration, bool) { return 0, false }

	for i := 0; i < 5; i++ {
		s.Schedule(PerformerKey("alice"), time.Hour, noop)
	}
	assert.Equal(t, 1, s.Live())
	s.CancelAll()
}
