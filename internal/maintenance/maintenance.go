// Package maintenance runs the periodic housekeeping jobs the service needs
// beyond request serving: evicting stale job records, refreshing the JWKS
// cache ahead of its natural TTL, and optionally snapshotting the
// market-data cache to S3. It is grounded on the teacher's
// internal/scheduler package (cron.New(cron.WithSeconds()), a Job
// interface, AddJob registering named jobs against a cron expression) but
// narrowed to this service's three jobs instead of the teacher's open
// registry of database-maintenance tasks.
package maintenance

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of periodic work. Jobs that need a context capture
// one at construction time rather than receiving it through Run, matching
// the teacher's interface shape exactly.
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps a cron.Cron, logging each job's outcome.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New builds a Scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "maintenance").Logger(),
	}
}

// AddJob registers job against a standard cron schedule expression (with
// seconds field, e.g. "0 0 2 * * *" for daily at 2 AM).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("maintenance job failed")
			return
		}
		s.log.Info().Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("maintenance job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("maintenance job registered")
	return nil
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("maintenance scheduler started")
}

// Stop waits for in-flight job runs to finish, then returns.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("maintenance scheduler stopped")
}
