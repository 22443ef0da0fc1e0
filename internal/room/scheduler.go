package room

import (
	"context"
	"sync"
	"time"

	"ensemble/pkg/types"
)

// TaskKey identifies one replacement chain: a directive kind, qualified by
// participant id for performer-level chains.
type TaskKey struct {
	Kind   types.DirectiveKind
	UserID string
}

// GroupKey is the key for the room-wide group directive chain.
func GroupKey() TaskKey {
	return TaskKey{Kind: types.DirectiveGroup}
}

// PerformerKey is the key for one performer's directive chain.
func PerformerKey(userID string) TaskKey {
	return TaskKey{Kind: types.DirectivePerformer, UserID: userID}
}

// FireFunc runs when a timer elapses. It returns the delay until the next
// firing and whether the chain continues. The context is cancelled when the
// task is cancelled; long operations inside the callback should honor it.
type FireFunc func(ctx context.Context) (next time.Duration, again bool)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler is the scheduled task table: at most one live timer per key at
// any instant. Replacing a key's timer cancels the old one and waits for it
// to actually terminate before the new timer starts counting down, so two
// replacement chains for the same key can never fire concurrently.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[TaskKey]*task
}

// NewScheduler creates an empty task table.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[TaskKey]*task)}
}

// Schedule installs a new timer for key, first cancelling and awaiting any
// existing timer for the same key. The new timer's goroutine is only
// started after the old one has fully unwound.
func (s *Scheduler) Schedule(key TaskKey, delay time.Duration, fire FireFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	old := s.tasks[key]
	s.tasks[key] = t
	s.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	go s.run(ctx, t, key, delay, fire)
}

func (s *Scheduler) run(ctx context.Context, t *task, key TaskKey, delay time.Duration, fire FireFunc) {
	defer close(t.done)
	defer s.remove(key, t)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next, again := fire(ctx)
		if !again || ctx.Err() != nil {
			return
		}
		timer.Reset(next)
	}
}

// remove drops the table entry, but only if it still belongs to this task;
// a replacement may already have installed a newer one.
func (s *Scheduler) remove(key TaskKey, t *task) {
	s.mu.Lock()
	if s.tasks[key] == t {
		delete(s.tasks, key)
	}
	s.mu.Unlock()
}

// Cancel stops the timer for key and waits for its goroutine to terminate.
// Cancelling an absent key is a no-op.
func (s *Scheduler) Cancel(key TaskKey) {
	s.mu.Lock()
	t := s.tasks[key]
	s.mu.Unlock()

	if t != nil {
		t.cancel()
		<-t.done
	}
}

// CancelAll stops every live timer and waits for each to terminate. After
// it returns the table holds zero live timers (barring concurrent Schedule
// calls, which room handlers serialize).
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	snapshot := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		snapshot = append(snapshot, t)
	}
	s.mu.Unlock()

	for _, t := range snapshot {
		t.cancel()
	}
	for _, t := range snapshot {
		<-t.done
	}
}

// Live returns the number of keys with a live timer.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Scheduled reports whether key currently has a live timer.
func (s *Scheduler) Scheduled(key TaskKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}
