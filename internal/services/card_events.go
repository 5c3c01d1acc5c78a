package services

import (
	"context"
	"errors"
	"fmt"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/repositories/postgresrepo"
)

// refundSuffix keeps a refund from colliding with the payment it reverses.
const refundSuffix = "-refund"

var ErrUnknownCardEvent = errors.New("unknown card event kind")

type CardEventService struct {
	operations OperationStore
	accounts   AccountLookup
	treasuries TreasuryGetter
	notifier   SettlementNotifier
	metrics    *metrics.Metrics
	logger     logging.Logger
}

func NewCardEventService(
	operations OperationStore,
	accounts AccountLookup,
	treasuries TreasuryGetter,
	notifier SettlementNotifier,
	m *metrics.Metrics,
	logger logging.Logger,
) *CardEventService {
	return &CardEventService{
		operations: operations,
		accounts:   accounts,
		treasuries: treasuries,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
	}
}

// ProcessTreasuryEvents stores a batch of card events for one treasury.
// Redelivered events are ignored by the upsert.
func (s *CardEventService) ProcessTreasuryEvents(ctx context.Context, treasuryID int64, events []models.CardEvent) error {
	treasury, err := s.treasuries.GetTreasury(ctx, treasuryID)
	if err != nil {
		return fmt.Errorf("failed to load treasury %d: %w", treasuryID, err)
	}

	log := s.logger.WithField("treasury_id", treasuryID)

	operations := make([]models.TreasuryOperation, 0, len(events))
	for _, event := range events {
		op, err := cardOperation(treasuryID, event)
		if err != nil {
			log.WithError(err).WithField("event_id", event.EventID).Warn("Dropping card event")
			s.metrics.CardEvent(event.Kind, "rejected")
			continue
		}

		account, err := s.beneficiary(ctx, treasuryID, event.Account)
		if err != nil {
			return err
		}
		if account == nil {
			op.Status = models.StatusProcessedAccountMissing
		} else {
			op.Account = &account.Account
		}
		operations = append(operations, op)
	}

	inserted, err := s.operations.UpsertIgnoreDuplicates(ctx, operations)
	if err != nil {
		return fmt.Errorf("failed to store card operations: %w", err)
	}

	insertedIDs := make(map[string]struct{}, len(inserted))
	for _, id := range inserted {
		insertedIDs[id] = struct{}{}
	}

	var settleable []models.TreasuryOperation
	for _, op := range operations {
		if _, ok := insertedIDs[op.ID]; !ok {
			s.metrics.CardEvent(cardKind(op), "duplicate")
			continue
		}
		s.metrics.CardEvent(cardKind(op), string(op.Status))
		if op.Status.IsSettleable() {
			settleable = append(settleable, op)
		}
	}

	if s.notifier != nil && len(settleable) > 0 {
		if err := s.notifier.NotifySettleable(ctx, *treasury, settleable); err != nil {
			log.WithError(err).Warn("Failed to notify settlement")
		}
	}

	log.WithFields(logging.Fields{
		"received": len(events),
		"inserted": len(inserted),
	}).Info("Processed card events")

	return nil
}

// beneficiary returns nil when the event names no registered account.
func (s *CardEventService) beneficiary(ctx context.Context, treasuryID int64, address *string) (*models.TreasuryAccount, error) {
	if address == nil || *address == "" {
		return nil, nil
	}
	account, err := s.accounts.FindByAddress(ctx, treasuryID, *address)
	if err != nil {
		if errors.Is(err, postgresrepo.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	return account, nil
}

func cardOperation(treasuryID int64, event models.CardEvent) (models.TreasuryOperation, error) {
	op := models.TreasuryOperation{
		TreasuryID: treasuryID,
		CreatedAt:  event.CreatedAt,
		UpdatedAt:  event.CreatedAt,
		Status:     models.StatusPending,
		Metadata:   models.NewPaygMetadata(event.OrderID, event.Description),
		Origin:     models.OriginCard,
	}
	if event.Description != nil {
		op.Message = *event.Description
	}

	amount := event.Amount
	if amount < 0 {
		amount = -amount
	}
	op.Amount = amount

	switch event.Kind {
	case models.CardEventPayment:
		op.ID = event.EventID
		op.Direction = models.DirectionIn
	case models.CardEventRefund:
		op.ID = event.EventID + refundSuffix
		op.Direction = models.DirectionOut
	default:
		return op, fmt.Errorf("%w: %q", ErrUnknownCardEvent, event.Kind)
	}

	if event.EventID == "" {
		return op, errors.New("card event without id")
	}
	return op, nil
}

func cardKind(op models.TreasuryOperation) string {
	if op.Direction == models.DirectionOut {
		return models.CardEventRefund
	}
	return models.CardEventPayment
}
