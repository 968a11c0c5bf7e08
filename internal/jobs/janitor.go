// Package jobs runs periodic housekeeping.
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one housekeeping step. Run returns how many items it removed.
type Task struct {
	Name     string
	Schedule string // cron spec, e.g. "@every 5m"
	Run      func(ctx context.Context) (int64, error)
}

// Janitor schedules tasks on a cron.
type Janitor struct {
	cron    *cron.Cron
	tasks   []Task
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewJanitor creates a janitor. Tasks are registered on Start.
func NewJanitor(logger *zap.Logger, tasks ...Task) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		cron:    cron.New(),
		tasks:   tasks,
		logger:  logger.Named("janitor"),
		timeout: time.Minute,
	}
}

// Start registers every task and starts the scheduler.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	for _, t := range j.tasks {
		if _, err := j.cron.AddFunc(t.Schedule, func() { j.RunTask(context.Background(), t) }); err != nil {
			return fmt.Errorf("schedule %s: %w", t.Name, err)
		}
	}
	j.cron.Start()
	j.running = true
	j.logger.Info("janitor started", zap.Int("tasks", len(j.tasks)))
	return nil
}

// Stop halts the scheduler and waits for running tasks.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info("janitor stopped")
}

// RunTask runs one task immediately.
func (j *Janitor) RunTask(ctx context.Context, t Task) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	n, err := t.Run(ctx)
	if err != nil {
		j.logger.Warn("task failed", zap.String("task", t.Name), zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("task removed items", zap.String("task", t.Name), zap.Int64("removed", n))
	}
}

// PurgeFiles returns a task body that deletes regular files in dir older than maxAge.
func PurgeFiles(dir string, maxAge time.Duration, now func() time.Time) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return 0, nil
			}
			return 0, err
		}
		cutoff := now().Add(-maxAge)
		var removed int64
		for _, e := range entries {
			if ctx.Err() != nil {
				return removed, ctx.Err()
			}
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
		return removed, nil
	}
}
