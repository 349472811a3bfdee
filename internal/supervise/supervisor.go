// pattern: Imperative Shell

// Package supervise runs long-lived tasks and restarts them per policy.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"projsync/internal/logging"
)

// RestartPolicy controls when a task is restarted after it returns.
type RestartPolicy int

const (
	Never     RestartPolicy = iota // Never restart
	OnFailure                      // Restart only when the task returns an error
	Always                         // Always restart (unless Stop is called)
)

// Task is a long-lived function. It should return when ctx is cancelled.
type Task func(ctx context.Context) error

// Config describes how a task is supervised.
type Config struct {
	Name       string
	RestartOn  RestartPolicy
	MaxRetries int           // 0 means unlimited
	RetryDelay time.Duration // default 1s
}

// ErrRetriesExceeded wraps the last task error once MaxRetries is used up.
var ErrRetriesExceeded = errors.New("max retries exceeded")

// Supervisor manages the lifecycle of one task.
type Supervisor struct {
	cfg    Config
	task   Task
	logger *logging.ScopedLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	err     error
	done    chan struct{}
}

// New creates a supervisor for task.
func New(cfg Config, task Task, logger *logging.ScopedLogger) *Supervisor {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Supervisor{
		cfg:    cfg,
		task:   task,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start runs the task in a goroutine. Non-blocking.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("supervisor: already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	go s.run(ctx)
	return nil
}

// Stop cancels the task, waits for it to return and reports its final error.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-s.done
	return s.Err()
}

// Running returns whether the task is currently supervised.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done returns a channel that is closed when supervision ends, either
// because the task will not be restarted or because Stop was called.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended supervision. A task stopped through its
// context reports nil.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Supervisor) finish(err error) {
	s.mu.Lock()
	s.running = false
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *Supervisor) run(ctx context.Context) {
	retries := 0
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.finish(nil)
			return
		}

		restart := false
		switch s.cfg.RestartOn {
		case Always:
			restart = true
		case OnFailure:
			restart = err != nil
		}
		if !restart {
			s.finish(err)
			return
		}

		retries++
		if s.cfg.MaxRetries > 0 && retries > s.cfg.MaxRetries {
			s.logger.Error("max retries exceeded", "retries", retries-1, "task", s.cfg.Name)
			if err == nil {
				s.finish(ErrRetriesExceeded)
			} else {
				s.finish(fmt.Errorf("%w: %w", ErrRetriesExceeded, err))
			}
			return
		}

		s.logger.Info("restarting task", "task", s.cfg.Name, "attempt", retries, "delay", s.cfg.RetryDelay)
		select {
		case <-time.After(s.cfg.RetryDelay):
		case <-ctx.Done():
			s.finish(nil)
			return
		}
	}
}

// runOnce runs the task once, turning a panic into an error.
func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		switch {
		case err == nil:
			s.logger.Info("task exited cleanly", "task", s.cfg.Name)
		case ctx.Err() != nil:
			s.logger.Info("task stopped", "task", s.cfg.Name)
		default:
			s.logger.Warn("task failed", "task", s.cfg.Name, "error", err)
		}
	}()

	s.logger.Debug("starting task", "task", s.cfg.Name)
	return s.task(ctx)
}
