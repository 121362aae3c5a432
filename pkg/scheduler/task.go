// Package scheduler runs repeating background work such as balance and history
// refreshes.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultInterval is the refresh interval used when none is configured
	DefaultInterval = 30 * time.Second

	// DefaultTriggerEvery is the minimum spacing of manual triggers
	DefaultTriggerEvery = time.Second
)

// Task is a unit of repeating work supervised by a Runner.
type Task interface {
	Name() string
	Run(ctx context.Context) error
	Stop()
}

// PeriodicTask calls a function every interval. A tick that arrives while the
// previous call is still running is skipped.
type PeriodicTask struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	logger   *logrus.Logger
	limiter  *rate.Limiter

	trigger  chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	inFlight sync.WaitGroup

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// Option configures a PeriodicTask.
type Option func(*PeriodicTask)

// WithTriggerLimit sets how often Trigger may start an extra run.
func WithTriggerLimit(every time.Duration, burst int) Option {
	return func(t *PeriodicTask) {
		t.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// NewPeriodicTask creates a task named name that calls fn every interval.
func NewPeriodicTask(logger *logrus.Logger, name string, interval time.Duration, fn func(ctx context.Context) error, opts ...Option) (*PeriodicTask, error) {
	if fn == nil {
		return nil, errors.New("task function is required")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if logger == nil {
		logger = logrus.New()
	}

	t := &PeriodicTask{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(DefaultTriggerEvery), 1),
		trigger:  make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name implements Task.
func (t *PeriodicTask) Name() string {
	return t.name
}

// Run ticks until ctx is cancelled or Stop is called, then waits for the
// in-flight call to return.
func (t *PeriodicTask) Run(ctx context.Context) error {
	log := t.logger.WithField("task", t.name)
	log.WithField("interval", t.interval).Info("Starting task")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer t.inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, stopping task")
			return ctx.Err()
		case <-t.stopped:
			log.Info("Task stopped")
			return nil
		case <-ticker.C:
			t.start(ctx, log, "tick")
		case <-t.trigger:
			t.start(ctx, log, "trigger")
		}
	}
}

func (t *PeriodicTask) start(ctx context.Context, log *logrus.Entry, cause string) {
	if !t.running.CompareAndSwap(false, true) {
		t.skipped.Add(1)
		log.WithField("cause", cause).Debug("Previous run still in flight, skipping")
		return
	}

	t.inFlight.Add(1)
	go func() {
		defer t.inFlight.Done()
		defer t.running.Store(false)

		t.runs.Add(1)
		if err := t.fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			// Keep ticking after a failed run
			log.WithError(err).WithField("cause", cause).Warn("Task run failed")
		}
	}()
}

// Trigger asks for an immediate run. It reports false when triggers are coming
// faster than the task's trigger limit allows.
func (t *PeriodicTask) Trigger() bool {
	if !t.limiter.Allow() {
		return false
	}
	select {
	case t.trigger <- struct{}{}:
	default:
	}
	return true
}

// Stop ends Run. It is safe to call more than once.
func (t *PeriodicTask) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Runs returns how many calls have started.
func (t *PeriodicTask) Runs() int64 {
	return t.runs.Load()
}

// Skipped returns how many ticks were dropped because a call was in flight.
func (t *PeriodicTask) Skipped() int64 {
	return t.skipped.Load()
}
