// Package scheduler runs the time-driven background jobs: recurring
// (routinary) task creation and the overdue-task sweep. Jobs fire on
// independent tickers and can also be triggered manually through the
// cron admin endpoints or the CLI.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/workboard/internal/store"
)

// runTimeout bounds a single job invocation.
const runTimeout = 2 * time.Minute

// JobStatus reports a job's last completed run for the cron status
// endpoints.
type JobStatus struct {
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler owns the background job loop. Create with New, then
// Start/Stop around the server lifecycle.
type Scheduler struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time

	routinaryEvery time.Duration
	overdueEvery   time.Duration

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	done          chan struct{}
	lastRoutinary JobStatus
	lastOverdue   JobStatus
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler. routinaryEvery and overdueEvery control
// the ticker cadences; non-positive values fall back to hourly.
func New(st store.Store, logger *zap.Logger, routinaryEvery, overdueEvery time.Duration, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if routinaryEvery <= 0 {
		routinaryEvery = time.Hour
	}
	if overdueEvery <= 0 {
		overdueEvery = time.Hour
	}
	s := &Scheduler{
		store:          st,
		logger:         logger,
		now:            time.Now,
		routinaryEvery: routinaryEvery,
		overdueEvery:   overdueEvery,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the job loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopCh, s.done)
}

// Stop halts the job loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
}

// RoutinaryStatus returns the recurring-task job's last run info.
func (s *Scheduler) RoutinaryStatus() JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.lastRoutinary
	st.Running = s.running
	return st
}

// OverdueStatus returns the overdue sweep's last run info.
func (s *Scheduler) OverdueStatus() JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.lastOverdue
	st.Running = s.running
	return st
}

// loop drives both jobs until stopCh closes. Each job runs once at
// startup so a freshly-restarted server catches up immediately.
func (s *Scheduler) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	routinaryTicker := time.NewTicker(s.routinaryEvery)
	defer routinaryTicker.Stop()
	overdueTicker := time.NewTicker(s.overdueEvery)
	defer overdueTicker.Stop()

	s.runRoutinaryOnce()
	s.runOverdueOnce()

	for {
		select {
		case <-stopCh:
			return
		case <-routinaryTicker.C:
			s.runRoutinaryOnce()
		case <-overdueTicker.C:
			s.runOverdueOnce()
		}
	}
}

func (s *Scheduler) runRoutinaryOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if _, err := s.RunRoutinary(ctx); err != nil {
		s.logger.Error("routinary run failed", zap.Error(err))
	}
}

func (s *Scheduler) runOverdueOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if _, err := s.RunOverdue(ctx); err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
	}
}

// recordRun stores a job's outcome for the status endpoints. Every
// invocation path records here: the ticker, the cron admin endpoints,
// and the CLI one-shots.
func (s *Scheduler) recordRun(status *JobStatus, ranAt time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	*status = JobStatus{LastRunAt: &ranAt}
	if err != nil {
		status.LastError = err.Error()
	}
}
