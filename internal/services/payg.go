package services

import (
	"context"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"
	"treasury-reconciler/internal/resolver"
)

// PaygReconciler settles every bank transaction on its own.
type PaygReconciler struct {
	ingester
}

func NewPaygReconciler(
	operations OperationStore,
	source TransactionSource,
	resolver *resolver.Resolver,
	notifier SettlementNotifier,
	m *metrics.Metrics,
	logger logging.Logger,
) *PaygReconciler {
	return &PaygReconciler{ingester: ingester{
		operations: operations,
		source:     source,
		resolver:   resolver,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
	}}
}

// Sync ingests every transaction newer than the resume cursor as a pending
// operation. It is safe to re-run: existing rows are never overwritten.
func (r *PaygReconciler) Sync(ctx context.Context, treasury models.Treasury, tokens *ponto.TokenHolder) error {
	_, err := r.ingest(ctx, treasury, tokens, models.StatusPending)
	return err
}
