package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunNow errors.
var (
	ErrUnknownJob = errors.New("cron: unknown job")
	ErrJobRunning = errors.New("cron: job is already running")
)

// Scheduler runs registered jobs on their cron schedules. A job never
// overlaps itself: a tick or RunNow that finds it busy is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]Job
	order  []string
	locks  map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc

	// OnResult, when set, observes the outcome of every run.
	OnResult func(job string, err error)
}

// NewScheduler returns an idle scheduler. Register jobs before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   make(map[string]Job),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// RegisterJob adds j. Names are unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.jobs[name] = j
	s.order = append(s.order, name)
	s.locks[name] = &sync.Mutex{}
	return nil
}

// Start schedules every registered job. Standard five-field expressions
// and descriptors such as @hourly are accepted.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	for _, name := range s.order {
		job := s.jobs[name]
		if _, err := s.cron.AddFunc(job.Schedule(), func() { _, _ = s.run(ctx, job) }); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", s.order)
	return nil
}

// RunNow runs the named job synchronously, outside its schedule. It returns
// the job's error, or an error if the job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	ran, err := s.run(ctx, job)
	if !ran {
		return fmt.Errorf("%w: %q", ErrJobRunning, name)
	}
	return err
}

// run executes job unless a previous run is still in flight. It reports
// whether the job ran and its error.
func (s *Scheduler) run(ctx context.Context, job Job) (bool, error) {
	lock := s.locks[job.Name()]

	if !lock.TryLock() {
		s.logger.Warn("cron: job busy, run skipped", "job", job.Name())
		return false, nil
	}
	defer lock.Unlock()

	start := time.Now()
	err := job.Run(ctx)
	log := s.logger.With("job", job.Name(), "elapsed", time.Since(start))
	if err != nil {
		log.Error("cron: job failed", "error", err)
	} else {
		log.Debug("cron: job done")
	}
	if s.OnResult != nil {
		s.OnResult(job.Name(), err)
	}
	return true, err
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
