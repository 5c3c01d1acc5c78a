package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"

	"github.com/google/uuid"
)

var ErrUnknownStrategy = errors.New("unknown sync strategy")

// TreasuryFailure records why one treasury did not sync.
type TreasuryFailure struct {
	TreasuryID int64  `json:"treasury_id"`
	Error      string `json:"error"`
}

// Report summarizes one scheduled run.
type Report struct {
	RunID     string            `json:"run_id"`
	Provider  string            `json:"provider"`
	Succeeded []int64           `json:"succeeded"`
	Failed    []TreasuryFailure `json:"failed"`
}

func (r Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// SyncService dispatches every treasury of a provider to its strategy's reconciler.
type SyncService struct {
	treasuries      TreasuryLister
	reconcilers     map[models.SyncStrategy]Reconciler
	tokens          *ponto.TokenHolder
	treasuryTimeout time.Duration
	metrics         *metrics.Metrics
	logger          logging.Logger
}

func NewSyncService(
	treasuries TreasuryLister,
	payg Reconciler,
	periodic Reconciler,
	tokens *ponto.TokenHolder,
	treasuryTimeout time.Duration,
	m *metrics.Metrics,
	logger logging.Logger,
) *SyncService {
	return &SyncService{
		treasuries: treasuries,
		reconcilers: map[models.SyncStrategy]Reconciler{
			models.SyncStrategyPayg:     payg,
			models.SyncStrategyPeriodic: periodic,
		},
		tokens:          tokens,
		treasuryTimeout: treasuryTimeout,
		metrics:         m,
		logger:          logger,
	}
}

// RunScheduledSync syncs every treasury bound to provider, one after another.
// A failing treasury is recorded in the report and never stops the others.
// The error is non-nil only when the treasuries could not be listed.
func (s *SyncService) RunScheduledSync(ctx context.Context, provider string) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Provider:  provider,
		Succeeded: []int64{},
		Failed:    []TreasuryFailure{},
	}
	log := s.logger.WithFields(logging.Fields{"run_id": report.RunID, "provider": provider})

	treasuries, err := s.treasuries.ListBySyncProvider(ctx, provider)
	if err != nil {
		return report, fmt.Errorf("failed to list treasuries: %w", err)
	}
	log.WithField("treasuries", len(treasuries)).Info("Starting sync run")

	for _, treasury := range treasuries {
		if ctx.Err() != nil {
			report.Failed = append(report.Failed, TreasuryFailure{TreasuryID: treasury.ID, Error: ctx.Err().Error()})
			continue
		}

		started := time.Now()
		err := s.syncTreasury(ctx, treasury)
		s.metrics.SyncRun(string(treasury.SyncStrategy), err, time.Since(started))

		entry := log.WithFields(logging.Fields{
			"treasury_id": treasury.ID,
			"strategy":    treasury.SyncStrategy,
		})
		if err != nil {
			entry.WithError(err).Error("Treasury sync failed")
			report.Failed = append(report.Failed, TreasuryFailure{TreasuryID: treasury.ID, Error: err.Error()})
			continue
		}
		entry.Info("Treasury synced")
		report.Succeeded = append(report.Succeeded, treasury.ID)
	}

	log.WithFields(logging.Fields{
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
	}).Info("Sync run finished")

	return report, nil
}

func (s *SyncService) syncTreasury(ctx context.Context, treasury models.Treasury) (err error) {
	reconciler, ok := s.reconcilers[treasury.SyncStrategy]
	if !ok || reconciler == nil {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, treasury.SyncStrategy)
	}

	if s.treasuryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.treasuryTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("stack", string(debug.Stack())).Error("Recovered from panic during treasury sync")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return reconciler.Sync(ctx, treasury, s.tokens)
}
