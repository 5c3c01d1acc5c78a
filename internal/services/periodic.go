package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"
	"treasury-reconciler/internal/repositories/redisrepo"
	"treasury-reconciler/internal/resolver"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

// RewardPolicy decides what a promoted group settles for.
type RewardPolicy string

const (
	// RewardOnTotal settles total contributions plus the reward.
	RewardOnTotal RewardPolicy = "total"
	// RewardOnTarget settles the target plus the reward, regardless of overshoot.
	RewardOnTarget RewardPolicy = "target"
)

var ErrUnknownRewardPolicy = errors.New("unknown reward policy")

func ParseRewardPolicy(s string) (RewardPolicy, error) {
	switch RewardPolicy(s) {
	case RewardOnTotal, RewardOnTarget:
		return RewardPolicy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRewardPolicy, s)
}

// SettlementAmount applies the policy to one group.
func (p RewardPolicy) SettlementAmount(total, target, reward int64) int64 {
	if p == RewardOnTarget {
		return target + reward
	}
	return total + reward
}

// PeriodicReconciler ingests contributions as pending-periodic and promotes
// one representative per account once the account reached its target.
type PeriodicReconciler struct {
	ingester
	targets  TargetStore
	locker   AggregationLocker
	lockTTL  time.Duration
	policy   RewardPolicy
	validate *validator.Validate
	now      func() time.Time
}

type PeriodicOptions struct {
	Locker  AggregationLocker
	LockTTL time.Duration
	Policy  RewardPolicy
	Now     func() time.Time
}

func NewPeriodicReconciler(
	operations OperationStore,
	source TransactionSource,
	resolver *resolver.Resolver,
	targets TargetStore,
	notifier SettlementNotifier,
	m *metrics.Metrics,
	logger logging.Logger,
	opts PeriodicOptions,
) *PeriodicReconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy == "" {
		opts.Policy = RewardOnTotal
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &PeriodicReconciler{
		ingester: ingester{
			operations: operations,
			source:     source,
			resolver:   resolver,
			notifier:   notifier,
			metrics:    m,
			logger:     logger,
		},
		targets:  targets,
		locker:   opts.Locker,
		lockTTL:  opts.LockTTL,
		policy:   opts.Policy,
		validate: validator.New(),
		now:      opts.Now,
	}
}

// Sync ingests new contributions, then runs the monthly aggregation. A
// configuration error only skips aggregation; ingested rows are kept.
func (r *PeriodicReconciler) Sync(ctx context.Context, treasury models.Treasury, tokens *ponto.TokenHolder) error {
	if _, err := r.ingest(ctx, treasury, tokens, models.StatusPendingPeriodic); err != nil {
		return err
	}

	if _, err := r.Aggregate(ctx, treasury, r.now()); err != nil {
		return fmt.Errorf("aggregation skipped: %w", err)
	}
	return nil
}

type AggregationResult struct {
	InWindow bool
	Promoted []models.TreasuryOperation
}

// Aggregate promotes matured groups of the window containing now. Outside
// the window it does nothing.
func (r *PeriodicReconciler) Aggregate(ctx context.Context, treasury models.Treasury, now time.Time) (AggregationResult, error) {
	var result AggregationResult

	cfg := treasury.SyncStrategyConfig
	if cfg == nil {
		return result, models.ErrMissingStrategyConfig
	}
	if err := r.validate.Struct(cfg); err != nil {
		return result, fmt.Errorf("invalid periodic config: %w", err)
	}

	minDate, maxDate, err := MonthlyWindow(*cfg, now)
	if err != nil {
		return result, err
	}
	if !InWindow(minDate, maxDate, now) {
		return result, nil
	}
	result.InWindow = true

	log := r.logger.WithFields(logging.Fields{
		"treasury_id": treasury.ID,
		"window_from": minDate,
		"window_to":   maxDate,
	})

	if r.locker != nil {
		release, err := r.locker.AcquireAggregation(ctx, treasury.ID, uuid.NewString(), r.lockTTL)
		if err != nil {
			if errors.Is(err, redisrepo.ErrLockNotAcquired) {
				log.Info("Aggregation already running elsewhere, skipping")
				return result, nil
			}
			return result, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release aggregation lock")
			}
		}()
	}

	operations, err := r.operations.PendingPeriodicInWindow(ctx, treasury.ID, minDate, maxDate)
	if err != nil {
		return result, fmt.Errorf("failed to load contributions: %w", err)
	}
	if len(operations) == 0 {
		return result, nil
	}

	targets, err := r.targets.Targets(ctx, treasury.ID)
	if err != nil {
		return result, fmt.Errorf("failed to load account targets: %w", err)
	}

	for _, group := range groupByAccount(operations) {
		target := cfg.Target
		if t, ok := targets[group.account]; ok {
			target = t
		}

		total := group.total()
		if total < target {
			continue
		}

		representative, others := group.split()
		settlement := r.policy.SettlementAmount(total, target, cfg.Reward)
		metadata := models.NewPeriodicMetadata(others, total, cfg.Reward, settlement)

		ok, err := r.operations.Promote(ctx, treasury.ID, representative.ID, metadata)
		if err != nil {
			return result, fmt.Errorf("failed to promote %s: %w", representative.ID, err)
		}
		if !ok {
			log.WithField("operation_id", representative.ID).Warn("Representative no longer pending-periodic, skipping")
			continue
		}

		representative.Status = models.StatusPending
		representative.Metadata = metadata
		result.Promoted = append(result.Promoted, representative)
		r.metrics.Promoted(treasury.ID)

		log.WithFields(logging.Fields{
			"account":      group.account,
			"operation_id": representative.ID,
			"grouped":      len(others),
			"total":        total,
			"settlement":   settlement,
		}).Info("Promoted periodic contributions")
	}

	if r.notifier != nil && len(result.Promoted) > 0 {
		if err := r.notifier.NotifySettleable(ctx, treasury, result.Promoted); err != nil {
			log.WithError(err).Warn("Failed to notify settlement")
		}
	}

	return result, nil
}

type accountGroup struct {
	account    string
	operations []models.TreasuryOperation
}

func (g accountGroup) total() int64 {
	var total int64
	for _, op := range g.operations {
		total += op.Amount
	}
	return total
}

// split picks the representative: earliest created_at, ties broken by lowest id.
// The remaining ids are returned in ascending order.
func (g accountGroup) split() (models.TreasuryOperation, []string) {
	ops := append([]models.TreasuryOperation(nil), g.operations...)
	sort.SliceStable(ops, func(a, b int) bool {
		if !ops[a].CreatedAt.Equal(ops[b].CreatedAt) {
			return ops[a].CreatedAt.Before(ops[b].CreatedAt)
		}
		return ops[a].ID < ops[b].ID
	})

	others := make([]string, 0, len(ops)-1)
	for _, op := range ops[1:] {
		others = append(others, op.ID)
	}
	sort.Strings(others)
	return ops[0], others
}

// groupByAccount groups resolved incoming contributions by account.
func groupByAccount(operations []models.TreasuryOperation) []accountGroup {
	index := make(map[string]int)
	var groups []accountGroup
	for _, op := range operations {
		if op.Account == nil || op.Direction != models.DirectionIn {
			continue
		}
		i, ok := index[*op.Account]
		if !ok {
			i = len(groups)
			index[*op.Account] = i
			groups = append(groups, accountGroup{account: *op.Account})
		}
		groups[i].operations = append(groups[i].operations, op)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].account < groups[b].account })
	return groups
}
