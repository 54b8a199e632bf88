package core

// run_limiter.go bounds the number of audit runs processed at once.
//
// Each run holds one slot from Acquire until its release func is called.
// When every slot is taken, callers wait up to maxWait and then fail with
// ErrTooManyRuns. WaitForDrain lets the server finish in-flight runs
// during graceful shutdown.

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait time.
var ErrTooManyRuns = errors.New("too many concurrent audit runs, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel audit runs.
const DefaultMaxConcurrentRuns = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// RunLimiter is a semaphore keyed by run ID.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active map[string]time.Time
}

// NewRunLimiter allows at most maxConcurrent runs; callers wait up to maxWait for a slot.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		active:  make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free, maxWait expires or ctx is done.
// The returned release func frees the slot; calling it more than once is a no-op.
func (l *RunLimiter) Acquire(ctx context.Context, runID string) (func(), error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return l.track(runID), nil
	case <-timer.C:
		return nil, ErrTooManyRuns
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes a slot without waiting.
func (l *RunLimiter) TryAcquire(runID string) (func(), bool) {
	select {
	case l.slots <- struct{}{}:
		return l.track(runID), true
	default:
		return nil, false
	}
}

func (l *RunLimiter) track(runID string) func() {
	l.mu.Lock()
	l.active[runID] = time.Now()
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, runID)
			l.mu.Unlock()
			<-l.slots
		})
	}
}

// ActiveCount returns the number of runs holding a slot.
func (l *RunLimiter) ActiveCount() int {
	return len(l.slots)
}

// ActiveRuns returns the IDs of runs holding a slot, oldest first.
func (l *RunLimiter) ActiveRuns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.active))
	for id := range l.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return l.active[ids[i]].Before(l.active[ids[j]])
	})
	return ids
}

// WaitForDrain blocks until every run has released its slot or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot for the health endpoint.
type RunLimiterStatus struct {
	Active        int      `json:"active"`
	Available     int      `json:"available"`
	MaxConcurrent int      `json:"max_concurrent"`
	Runs          []string `json:"runs"`
}

// Status returns the current limiter state.
func (l *RunLimiter) Status() RunLimiterStatus {
	active := len(l.slots)
	return RunLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
		Runs:          l.ActiveRuns(),
	}
}
