package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"
	"treasury-reconciler/internal/repositories/postgresrepo"
	"treasury-reconciler/internal/resolver"
)

// ingester is the bank-feed ingestion shared by both strategies.
type ingester struct {
	operations OperationStore
	source     TransactionSource
	resolver   *resolver.Resolver
	notifier   SettlementNotifier
	metrics    *metrics.Metrics
	logger     logging.Logger
}

type ingestResult struct {
	Fetched    int
	Inserted   int
	Unresolved int
	Skipped    int
}

// resumeCursor is the saved cursor, else the newest stored bank operation,
// else nil (full history).
func (i *ingester) resumeCursor(ctx context.Context, treasuryID int64) (*string, error) {
	cursor, err := i.operations.GetCursor(ctx, treasuryID)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		return &cursor.OperationID, nil
	}

	latest, err := i.operations.LatestBankOperation(ctx, treasuryID)
	if err != nil {
		if errors.Is(err, postgresrepo.ErrOperationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &latest.ID, nil
}

func (i *ingester) ingest(ctx context.Context, treasury models.Treasury, tokens *ponto.TokenHolder, status models.OperationStatus) (ingestResult, error) {
	var result ingestResult

	if treasury.SyncProviderAccount == nil || *treasury.SyncProviderAccount == "" {
		return result, fmt.Errorf("treasury %d has no provider account", treasury.ID)
	}

	since, err := i.resumeCursor(ctx, treasury.ID)
	if err != nil {
		return result, fmt.Errorf("failed to read resume cursor: %w", err)
	}

	var feed []models.RawTransaction
	for tx, err := range i.source.GetAllTransactionsUntilID(ctx, tokens, *treasury.SyncProviderAccount, since) {
		if err != nil {
			return result, fmt.Errorf("failed to fetch transactions: %w", err)
		}
		feed = append(feed, tx)
	}

	result.Fetched = len(feed)
	if len(feed) == 0 {
		return result, nil
	}

	log := i.logger.WithField("treasury_id", treasury.ID)
	batch := i.resolver.NewBatch()

	ops := chronological(treasury.ID, feed, status)
	skipped := make(map[string]struct{})
	toStore := make([]models.TreasuryOperation, 0, len(ops))
	for _, op := range ops {
		account, err := batch.Resolve(ctx, op.Message, treasury.ID)
		if err != nil {
			log.WithError(err).WithField("operation_id", op.ID).Warn("Account lookup failed, operation left for next run")
			skipped[op.ID] = struct{}{}
			continue
		}
		if account == nil {
			op.Status = models.StatusProcessedAccountMissing
			result.Unresolved++
		} else {
			op.Account = &account.Account
		}
		toStore = append(toStore, op)
	}
	result.Skipped = len(skipped)

	inserted, err := i.operations.UpsertIgnoreDuplicates(ctx, toStore)
	if err != nil {
		return result, fmt.Errorf("failed to store operations: %w", err)
	}
	result.Inserted = len(inserted)

	if cursor, ok := nextCursor(ops, skipped); ok {
		if err := i.operations.SaveCursor(ctx, treasury.ID, cursor); err != nil {
			return result, fmt.Errorf("failed to save resume cursor: %w", err)
		}
	}

	i.recordInserted(ctx, treasury, toStore, inserted)

	log.WithFields(logging.Fields{
		"fetched":    result.Fetched,
		"inserted":   result.Inserted,
		"unresolved": result.Unresolved,
		"skipped":    result.Skipped,
	}).Info("Ingested bank transactions")

	return result, nil
}

// recordInserted updates metrics and notifies settlement for rows this run actually inserted.
func (i *ingester) recordInserted(ctx context.Context, treasury models.Treasury, stored []models.TreasuryOperation, insertedIDs []string) {
	inserted := make(map[string]struct{}, len(insertedIDs))
	for _, id := range insertedIDs {
		inserted[id] = struct{}{}
	}

	counts := make(map[models.OperationStatus]int)
	var settleable []models.TreasuryOperation
	for _, op := range stored {
		if _, ok := inserted[op.ID]; !ok {
			continue
		}
		counts[op.Status]++
		if op.Status.IsSettleable() {
			settleable = append(settleable, op)
		}
	}
	for status, n := range counts {
		i.metrics.OperationsIngested(treasury.ID, string(status), n)
	}

	if i.notifier == nil || len(settleable) == 0 {
		return
	}
	if err := i.notifier.NotifySettleable(ctx, treasury, settleable); err != nil {
		i.logger.WithError(err).WithField("treasury_id", treasury.ID).Warn("Failed to notify settlement")
	}
}

// chronological maps raw transactions to operations ordered oldest first by
// (created_at, id), whatever order the source delivered them in.
func chronological(treasuryID int64, feed []models.RawTransaction, status models.OperationStatus) []models.TreasuryOperation {
	ops := make([]models.TreasuryOperation, 0, len(feed))
	for _, tx := range feed {
		ops = append(ops, toOperation(treasuryID, tx, status))
	}
	sort.SliceStable(ops, func(a, b int) bool {
		if !ops[a].CreatedAt.Equal(ops[b].CreatedAt) {
			return ops[a].CreatedAt.Before(ops[b].CreatedAt)
		}
		return ops[a].ID < ops[b].ID
	})
	return ops
}

func toOperation(treasuryID int64, tx models.RawTransaction, status models.OperationStatus) models.TreasuryOperation {
	direction, amount := models.DirectionOf(tx.AmountMinorUnits)
	// outflows are never pooled
	if direction == models.DirectionOut && status == models.StatusPendingPeriodic {
		status = models.StatusPending
	}

	var description *string
	if tx.Reference != "" {
		ref := tx.Reference
		description = &ref
	}

	return models.TreasuryOperation{
		ID:         tx.ID,
		TreasuryID: treasuryID,
		CreatedAt:  tx.CreatedAt,
		UpdatedAt:  tx.UpdatedAt,
		Direction:  direction,
		Amount:     amount,
		Status:     status,
		Message:    tx.Reference,
		Metadata:   models.NewPaygMetadata(nil, description),
		Origin:     models.OriginBank,
	}
}

// nextCursor picks the transaction the next run resumes after, from ops
// ordered oldest first. With nothing skipped it is the newest transaction.
// Otherwise it is the one just older than the oldest skipped transaction, so
// every skipped row is fetched again. ok is false when the cursor must not move.
func nextCursor(ops []models.TreasuryOperation, skipped map[string]struct{}) (string, bool) {
	for idx, op := range ops {
		if _, ok := skipped[op.ID]; !ok {
			continue
		}
		if idx == 0 {
			return "", false
		}
		return ops[idx-1].ID, true
	}
	return ops[len(ops)-1].ID, true
}
