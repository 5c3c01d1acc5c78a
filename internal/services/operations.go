package services

import (
	"context"
	"errors"
	"fmt"

	"treasury-reconciler/internal/models"
)

var ErrTxHashRequired = errors.New("tx_hash is required when confirming an operation")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// OperationReviewStore is the part of the ledger used by review and settlement handoff.
type OperationReviewStore interface {
	GetOperation(ctx context.Context, treasuryID int64, id string) (*models.TreasuryOperation, error)
	ListByStatus(ctx context.Context, treasuryID int64, status models.OperationStatus, limit int) ([]models.TreasuryOperation, error)
	UpdateStatus(ctx context.Context, treasuryID int64, id string, from, to models.OperationStatus, txHash *string) error
}

type OperationService struct {
	operations OperationReviewStore
	treasuries TreasuryGetter
}

func NewOperationService(operations OperationReviewStore, treasuries TreasuryGetter) *OperationService {
	return &OperationService{
		operations: operations,
		treasuries: treasuries,
	}
}

// ListOperations returns the newest operations of a treasury with the given status.
func (s *OperationService) ListOperations(ctx context.Context, treasuryID int64, status models.OperationStatus, limit int) ([]models.TreasuryOperation, error) {
	if _, err := s.treasuries.GetTreasury(ctx, treasuryID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ops, err := s.operations.ListByStatus(ctx, treasuryID, status, limit)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []models.TreasuryOperation{}
	}
	return ops, nil
}

// UpdateStatus applies one settlement step reported by the settlement consumer.
func (s *OperationService) UpdateStatus(ctx context.Context, treasuryID int64, id string, to models.OperationStatus, txHash *string) (*models.TreasuryOperation, error) {
	if to == models.StatusConfirming && (txHash == nil || *txHash == "") {
		return nil, ErrTxHashRequired
	}

	op, err := s.operations.GetOperation(ctx, treasuryID, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(op.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, op.Status, to)
	}

	if err := s.operations.UpdateStatus(ctx, treasuryID, id, op.Status, to, txHash); err != nil {
		return nil, err
	}

	op.Status = to
	if txHash != nil {
		op.TxHash = txHash
	}
	return op, nil
}
