// Package scheduler runs the service's periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"

	u "code2diagram/internal/utils"
)

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	s gocron.Scheduler
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "create gocron scheduler")
	}
	return &Scheduler{s: s}, nil
}

// Every schedules task to run every interval. Overlapping runs of the same
// job are skipped.
func (s *Scheduler) Every(name string, interval time.Duration, task func()) error {
	if interval <= 0 {
		return errors.Errorf("job %s: interval must be positive", name)
	}
	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errors.Wrapf(err, "schedule job %s", name)
	}
	u.Debug("Scheduled job", "job", name, "interval", interval.String())
	return nil
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.s.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) Start() {
	u.Info("Starting scheduler", "jobs", len(s.s.Jobs()))
	s.s.Start()
}

// Stop waits for running jobs and shuts the scheduler down. It matches the
// lifecycle hook signature.
func (s *Scheduler) Stop(_ context.Context) error {
	u.Info("Stopping scheduler")
	if err := s.s.Shutdown(); err != nil {
		return errors.Wrap(err, "stop scheduler")
	}
	return nil
}

// StaleSweeper is the part of the staging area the sweep job needs.
type StaleSweeper interface {
	SweepStale(maxAge time.Duration) (int, error)
}

// SweepJob returns a task removing staging files older than maxAge.
func SweepJob(s StaleSweeper, maxAge time.Duration) func() {
	return func() {
		if _, err := s.SweepStale(maxAge); err != nil {
			u.Error("Stale staging sweep failed", "error", err)
		}
	}
}
