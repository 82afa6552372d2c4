// Package cron runs named maintenance jobs on fixed intervals.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is a periodic task. Fn receives the scheduler's context.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	Fn          func(ctx context.Context) error
}

type jobState struct {
	job Job

	mu       sync.Mutex
	status   Status
	message  string
	lastRun  *time.Time
	nextRun  time.Time
	duration time.Duration
}

// Snapshot is the reportable state of a job.
type Snapshot struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Message     string     `json:"message,omitempty"`
	NextRunAt   time.Time  `json:"nextRunAt"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	DurationMs  int64      `json:"durationMs"`
}

type Scheduler struct {
	mu     sync.RWMutex
	jobs   map[string]*jobState
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: make(map[string]*jobState), logger: logger.Named("cron")}
}

// Register adds a job. The first run happens one interval after registration.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = &jobState{
		job:     job,
		status:  StatusIdle,
		nextRun: time.Now().Add(job.Interval),
	}
}

// Start runs every registered job on its interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, js := range s.jobs {
		go s.loop(ctx, js)
	}
}

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	ticker := time.NewTicker(js.job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, js)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, js *jobState) {
	js.mu.Lock()
	if js.status == StatusRunning {
		js.mu.Unlock()
		return
	}
	js.status = StatusRunning
	js.mu.Unlock()

	started := time.Now()
	err := js.job.Fn(ctx)
	elapsed := time.Since(started)

	js.mu.Lock()
	js.lastRun = &started
	js.nextRun = started.Add(js.job.Interval)
	js.duration = elapsed
	if err != nil {
		js.status = StatusFailed
		js.message = err.Error()
	} else {
		js.status = StatusSucceeded
		js.message = ""
	}
	js.mu.Unlock()

	if err != nil {
		s.logger.Warn("job failed", zap.String("job", js.job.Name), zap.Duration("took", elapsed), zap.Error(err))
		return
	}
	s.logger.Info("job finished", zap.String("job", js.job.Name), zap.Duration("took", elapsed))
}

func (s *Scheduler) lookup(name string) (*jobState, error) {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %q not found", name)
	}
	return js, nil
}

// Trigger starts a job in the background.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	js, err := s.lookup(name)
	if err != nil {
		return err
	}
	go s.execute(context.WithoutCancel(ctx), js)
	return nil
}

// RunNow runs a job synchronously and returns its snapshot.
func (s *Scheduler) RunNow(ctx context.Context, name string) (Snapshot, error) {
	js, err := s.lookup(name)
	if err != nil {
		return Snapshot{}, err
	}
	s.execute(ctx, js)
	return js.snapshot(), nil
}

// List returns all jobs sorted by name.
func (s *Scheduler) List() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.jobs))
	for _, js := range s.jobs {
		out = append(out, js.snapshot())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (js *jobState) snapshot() Snapshot {
	js.mu.Lock()
	defer js.mu.Unlock()
	return Snapshot{
		Name:        js.job.Name,
		Description: js.job.Description,
		Status:      js.status,
		Message:     js.message,
		NextRunAt:   js.nextRun,
		LastRunAt:   js.lastRun,
		DurationMs:  js.duration.Milliseconds(),
	}
}
