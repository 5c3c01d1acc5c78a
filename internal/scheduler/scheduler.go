package scheduler

import (
	"context"
	"time"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/services"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
}

func New(logger logging.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// AddJob registers job under a standard five-field cron schedule, e.g. "0 3 * * *" or "@every 1h".
// A run still in progress when the next one is due is skipped.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		log := s.logger.WithField("job", job.Name())
		log.Debug("Running job")

		if err := job.Run(context.Background()); err != nil {
			log.WithError(err).Error("Job failed")
			return
		}
		log.Debug("Job completed")
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logging.Fields{
		"schedule": schedule,
		"job":      job.Name(),
	}).Info("Job registered")

	return nil
}

// SyncRunner runs one scheduled sync.
type SyncRunner interface {
	RunScheduledSync(ctx context.Context, provider string) (services.Report, error)
}

// SyncJob triggers the scheduled sync of one provider under a run timeout.
type SyncJob struct {
	runner   SyncRunner
	provider string
	timeout  time.Duration
}

func NewSyncJob(runner SyncRunner, provider string, timeout time.Duration) *SyncJob {
	return &SyncJob{runner: runner, provider: provider, timeout: timeout}
}

func (j *SyncJob) Name() string {
	return "sync:" + j.provider
}

func (j *SyncJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report, err := j.runner.RunScheduledSync(ctx, j.provider)
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return &FailedTreasuriesError{Report: report}
	}
	return nil
}

// FailedTreasuriesError reports a run where at least one treasury failed.
type FailedTreasuriesError struct {
	Report services.Report
}

func (e *FailedTreasuriesError) Error() string {
	return "sync run " + e.Report.RunID + " had failing treasuries"
}
