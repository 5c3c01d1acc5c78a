package services

import (
	"context"
	"iter"
	"time"

	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"
)

// OperationStore is the durable ledger of normalized operations.
type OperationStore interface {
	LatestBankOperation(ctx context.Context, treasuryID int64) (*models.TreasuryOperation, error)
	GetCursor(ctx context.Context, treasuryID int64) (*models.SyncCursor, error)
	SaveCursor(ctx context.Context, treasuryID int64, operationID string) error
	UpsertIgnoreDuplicates(ctx context.Context, operations []models.TreasuryOperation) ([]string, error)
	PendingPeriodicInWindow(ctx context.Context, treasuryID int64, from, to time.Time) ([]models.TreasuryOperation, error)
	Promote(ctx context.Context, treasuryID int64, id string, metadata models.OperationMetadata) (bool, error)
}

// TransactionSource yields the bank feed of one account, newest first,
// stopping before sinceID.
type TransactionSource interface {
	GetAllTransactionsUntilID(ctx context.Context, tokens *ponto.TokenHolder, accountRef string, sinceID *string) iter.Seq2[models.RawTransaction, error]
}

type TargetStore interface {
	Targets(ctx context.Context, treasuryID int64) (map[string]int64, error)
}

type TreasuryLister interface {
	ListBySyncProvider(ctx context.Context, provider string) ([]models.Treasury, error)
}

// SettlementNotifier tells the settlement consumer that operations became settleable.
type SettlementNotifier interface {
	NotifySettleable(ctx context.Context, treasury models.Treasury, operations []models.TreasuryOperation) error
}

type AggregationLocker interface {
	AcquireAggregation(ctx context.Context, treasuryID int64, token string, ttl time.Duration) (func(context.Context) error, error)
}

// Reconciler syncs one treasury.
type Reconciler interface {
	Sync(ctx context.Context, treasury models.Treasury, tokens *ponto.TokenHolder) error
}

type AccountLookup interface {
	FindByAddress(ctx context.Context, treasuryID int64, address string) (*models.TreasuryAccount, error)
}

type TreasuryGetter interface {
	GetTreasury(ctx context.Context, id int64) (*models.Treasury, error)
}
