// Package scheduler runs reconciliation jobs on cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Task is a named job with its cron schedule. An empty schedule disables
// the task.
type Task struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler manages cron-based job execution. A job whose previous run is
// still in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID // task name → cron entry
}

// New creates a scheduler. Runs receive a context that is cancelled by Stop.
func New(logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers tasks. Tasks without a schedule are ignored and invalid
// schedules are logged and skipped.
func (s *Scheduler) Add(tasks ...Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if t.Schedule == "" {
			continue
		}
		task := t
		entryID, err := s.cron.AddFunc(task.Schedule, func() { s.run(task) })
		if err != nil {
			s.logger.Warn("invalid cron schedule", "job", task.Name, "schedule", task.Schedule, "error", err)
			continue
		}
		s.entries[task.Name] = entryID
		s.logger.Info("scheduled job", "job", task.Name, "schedule", task.Schedule)
	}
}

func (s *Scheduler) run(t Task) {
	s.logger.Info("scheduled run started", "job", t.Name)
	if err := t.Run(s.ctx); err != nil {
		s.logger.Warn("scheduled run failed", "job", t.Name, "error", err)
		return
	}
	s.logger.Info("scheduled run finished", "job", t.Name)
}

// Jobs returns the names of the scheduled tasks.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
