package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner supervises a set of tasks.
type Runner struct {
	logger  *logrus.Logger
	tasks   map[string]Task
	tasksMu sync.RWMutex
}

// NewRunner creates an empty runner.
func NewRunner(logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{logger: logger, tasks: make(map[string]Task)}
}

// AddTask registers a task. Names must be unique.
func (r *Runner) AddTask(task Task) error {
	r.tasksMu.Lock()
	defer r.tasksMu.Unlock()

	if _, exists := r.tasks[task.Name()]; exists {
		return fmt.Errorf("task %s already exists", task.Name())
	}
	r.tasks[task.Name()] = task
	return nil
}

// Run registers tasks, starts every registered task and blocks until ctx is
// cancelled, a task fails, or all tasks return. Every task has returned by the
// time Run does.
func (r *Runner) Run(ctx context.Context, tasks ...Task) error {
	for _, t := range tasks {
		if err := r.AddTask(t); err != nil {
			return err
		}
	}

	r.tasksMu.RLock()
	running := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		running = append(running, t)
	}
	r.tasksMu.RUnlock()

	r.logger.WithField("tasks", len(running)).Info("Starting scheduler")

	var wg sync.WaitGroup
	errChan := make(chan error, len(running))

	for _, task := range running {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.WithError(err).WithField("task", t.Name()).Error("Task failed")
				errChan <- fmt.Errorf("task %s failed: %w", t.Name(), err)
			}
		}(task)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("Context canceled, initiating shutdown")
		r.Stop()
		<-done
		return ctx.Err()
	case err := <-errChan:
		r.Stop()
		<-done
		return err
	case <-done:
		select {
		case err := <-errChan:
			return err
		default:
		}
		r.logger.Info("All tasks completed normally")
		return nil
	}
}

// Stop stops every registered task.
func (r *Runner) Stop() {
	r.tasksMu.RLock()
	defer r.tasksMu.RUnlock()

	for name, task := range r.tasks {
		r.logger.WithField("task", name).Debug("Stopping task")
		task.Stop()
	}
}
