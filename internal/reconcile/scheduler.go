package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/metrics"
)

// Runner executes one reconciliation pass
type Runner interface {
	RunPass(ctx context.Context) (*Pass, error)
}

// Reporter receives every completed pass
type Reporter interface {
	Report(ctx context.Context, pass *Pass)
}

// Status is a snapshot of the scheduler state
type Status struct {
	Started       bool
	Running       bool
	Interval      time.Duration
	LastStartedAt time.Time
	LastRunAt     time.Time
	Passes        int64
	Skipped       int64
	LastPass      *Pass
}

// Scheduler runs a forced pass on start and then one pass per interval.
// Passes never overlap: a tick that finds a pass running is dropped.
// Reporters run after the pass has released the guard.
type Scheduler struct {
	runner        Runner
	interval      time.Duration
	reporters     []Reporter
	reportTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *logrus.Logger

	running atomic.Bool
	started atomic.Bool
	passes  atomic.Int64
	skipped atomic.Int64
	trigger chan struct{}

	mu            sync.Mutex
	lastStartedAt time.Time
	lastRunAt     time.Time
	lastPass      *Pass
	cancel        context.CancelFunc

	wg sync.WaitGroup
}

// NewScheduler creates a new scheduler. A non-positive interval uses the default.
func NewScheduler(runner Runner, interval time.Duration, m *metrics.Metrics, logger *logrus.Logger, reporters ...Reporter) *Scheduler {
	if interval <= 0 {
		interval = constants.DefaultSyncInterval * time.Second
	}
	return &Scheduler{
		runner:        runner,
		interval:      interval,
		reporters:     reporters,
		reportTimeout: constants.DefaultReportTimeout * time.Second,
		metrics:       m,
		logger:        logger,
		trigger:       make(chan struct{}, 1),
	}
}

// Start launches the background loop, beginning with the startup pass
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Infof("Starting reconciliation scheduler with interval %s", s.interval)

	s.wg.Add(1)
	go s.loop(loopCtx)
	return nil
}

// Stop stops scheduling new passes, cancels one in flight and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
	s.started.Store(false)
	s.logger.Info("Reconciliation scheduler stopped")
}

// Trigger asks the loop for an extra pass without waiting for it.
// It returns false when the scheduler is not started, a pass is running or one is already queued.
func (s *Scheduler) Trigger() bool {
	if !s.started.Load() || s.running.Load() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce runs a pass synchronously, sharing the non-overlap guard with the loop
func (s *Scheduler) RunOnce(ctx context.Context) (*Pass, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, apperrors.ErrPassInProgress
	}
	pass, err := s.guarded(ctx, "on-demand")
	if err != nil {
		return nil, err
	}
	s.report(ctx, pass)
	return pass, nil
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Started:       s.started.Load(),
		Running:       s.running.Load(),
		Interval:      s.interval,
		LastStartedAt: s.lastStartedAt,
		LastRunAt:     s.lastRunAt,
		Passes:        s.passes.Load(),
		Skipped:       s.skipped.Load(),
		LastPass:      s.lastPass,
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.tryRun(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tryRun(ctx, "scheduled")
		case <-s.trigger:
			s.tryRun(ctx, "manual")
		}
	}
}

// tryRun starts a pass in the background unless one is already running
func (s *Scheduler) tryRun(ctx context.Context, reason string) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.metrics.PassSkipped()
		s.logger.Warnf("Skipping %s reconciliation pass: previous pass still running", reason)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if pass, err := s.guarded(ctx, reason); err == nil {
			s.report(ctx, pass)
		}
	}()
}

// guarded runs a pass and clears the running flag before returning
func (s *Scheduler) guarded(ctx context.Context, reason string) (*Pass, error) {
	defer s.running.Store(false)
	return s.execute(ctx, reason)
}

// report hands a finished pass to every reporter under one deadline
func (s *Scheduler) report(ctx context.Context, pass *Pass) {
	if len(s.reporters) == 0 {
		return
	}

	reportCtx, cancel := context.WithTimeout(ctx, s.reportTimeout)
	defer cancel()

	for _, reporter := range s.reporters {
		reporter.Report(reportCtx, pass)
	}
}

func (s *Scheduler) execute(ctx context.Context, reason string) (*Pass, error) {
	s.mu.Lock()
	s.lastStartedAt = time.Now()
	s.mu.Unlock()

	s.logger.Infof("Starting %s reconciliation pass", reason)

	pass, err := s.runner.RunPass(ctx)

	s.mu.Lock()
	s.lastRunAt = time.Now()
	if pass != nil {
		s.lastPass = pass
	}
	s.mu.Unlock()
	s.passes.Add(1)

	if err != nil {
		s.logger.Errorf("Reconciliation pass failed: %v", err)
		return nil, err
	}

	s.metrics.PassCompleted(pass.Duration)
	s.logSummary(pass)
	return pass, nil
}

func (s *Scheduler) logSummary(pass *Pass) {
	logger := s.logger.WithField("pass", pass.ID)

	names := make([]string, 0, len(pass.Results))
	for name := range pass.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result := pass.Results[name]
		logger.WithFields(logrus.Fields{
			"host":      name,
			"status":    result.Status(),
			"inspected": result.Inspected,
			"fixed":     result.Fixed,
			"failed":    result.Failed,
			"skipped":   result.SkippedInbounds,
		}).Info("Host reconciled")
	}

	logger.Infof("Reconciliation pass finished in %s: %d clients fixed on %d hosts",
		pass.Duration.Round(time.Millisecond), pass.Fixed(), len(pass.Results))

	if failed := pass.FailedHosts(); len(failed) > 0 {
		logger.Warnf("Failed hosts: %s", strings.Join(failed, ", "))
	}
}
