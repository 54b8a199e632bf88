package web

// runs.go tracks asynchronous audit runs.
//
// A run is registered before its goroutine starts, publishes (completed,
// total) to every subscriber as files finish and closes all subscriber
// channels once the report is ready. Finished runs stay queryable until
// the report store expires them.

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
)

// ErrRunNotFound is returned for unknown or expired run IDs.
var ErrRunNotFound = errors.New("run not found")

// RunPhase is the lifecycle state of an asynchronous run.
type RunPhase string

const (
	PhaseRunning  RunPhase = "running"
	PhaseComplete RunPhase = "complete"
	PhaseFailed   RunPhase = "failed"
)

// RunProgress is one progress event.
type RunProgress struct {
	RunID     string   `json:"run_id"`
	Phase     RunPhase `json:"phase"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	ReportID  string   `json:"report_id,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Percent returns completion as 0-100.
func (p RunProgress) Percent() int {
	if p.Total <= 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return p.Completed * 100 / p.Total
}

type activeRun struct {
	id      string
	started time.Time

	mu        sync.Mutex
	progress  RunProgress
	report    *audit.Report
	listeners []chan RunProgress
	done      chan struct{}
}

func (r *activeRun) snapshot() RunProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// update applies fn to the progress and fans the result out. Slow listeners
// miss intermediate events rather than blocking the import.
func (r *activeRun) update(fn func(*RunProgress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
	for _, ch := range r.listeners {
		select {
		case ch <- r.progress:
		default:
		}
	}
}

func (r *activeRun) finish(report *audit.Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.progress.Phase = PhaseFailed
		r.progress.Error = err.Error()
	} else {
		r.progress.Phase = PhaseComplete
		r.progress.Completed = r.progress.Total
		r.progress.ReportID = report.ID
		r.report = report
	}
	for _, ch := range r.listeners {
		select {
		case ch <- r.progress:
		default:
		}
		close(ch)
	}
	r.listeners = nil
	close(r.done)
}

func (r *activeRun) result() (*audit.Report, RunProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return r.report, r.progress, true
	default:
		return nil, r.progress, false
	}
}

// runRegistry holds runs by ID.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*activeRun
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*activeRun)}
}

func (g *runRegistry) start(id string, total int) *activeRun {
	run := &activeRun{
		id:       id,
		started:  time.Now(),
		progress: RunProgress{RunID: id, Phase: PhaseRunning, Total: total},
		done:     make(chan struct{}),
	}
	g.mu.Lock()
	g.runs[id] = run
	g.mu.Unlock()
	return run
}

func (g *runRegistry) get(id string) (*activeRun, error) {
	g.mu.RLock()
	run, ok := g.runs[id]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// subscribe returns a channel that first receives the current progress and
// is closed when the run finishes.
func (g *runRegistry) subscribe(id string) (<-chan RunProgress, error) {
	run, err := g.get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan RunProgress, 16)
	run.mu.Lock()
	defer run.mu.Unlock()
	ch <- run.progress
	select {
	case <-run.done:
		close(ch)
	default:
		run.listeners = append(run.listeners, ch)
	}
	return ch, nil
}

// forget drops a run after delay so late pollers can still fetch it.
func (g *runRegistry) forget(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		g.mu.Lock()
		delete(g.runs, id)
		g.mu.Unlock()
	})
}
