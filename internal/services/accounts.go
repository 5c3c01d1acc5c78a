package services

import (
	"context"
	"errors"
	"fmt"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/repositories/postgresrepo"
	"treasury-reconciler/internal/structured"
)

type AccountService struct {
	accountRepo *postgresrepo.AccountRepo
	treasuries  TreasuryGetter
	logger      logging.Logger
}

func NewAccountService(
	accountRepo *postgresrepo.AccountRepo,
	treasuries TreasuryGetter,
	logger logging.Logger,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		treasuries:  treasuries,
		logger:      logger,
	}
}

type JoinRequest struct {
	Account string  `json:"account" validate:"required"`
	Name    *string `json:"name,omitempty"`
	Target  *int64  `json:"target,omitempty" validate:"omitempty,gt=0"`
}

// Join registers a beneficiary and assigns it the next structured id of the
// treasury. Joining twice with the same address returns the first registration.
func (s *AccountService) Join(ctx context.Context, treasuryID int64, req JoinRequest) (*models.TreasuryAccount, bool, error) {
	if _, err := s.treasuries.GetTreasury(ctx, treasuryID); err != nil {
		return nil, false, err
	}

	existing, err := s.accountRepo.FindByAddress(ctx, treasuryID, req.Account)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, postgresrepo.ErrAccountNotFound) {
		return nil, false, err
	}

	txRepo, err := s.accountRepo.BeginTx(ctx)
	if err != nil {
		return nil, false, err
	}

	created, err := s.joinInTx(ctx, txRepo, treasuryID, req)
	if err != nil {
		if rollbackErr := txRepo.Rollback(); rollbackErr != nil {
			return nil, false, fmt.Errorf("join error: %w, rollback error: %v", err, rollbackErr)
		}
		return nil, false, err
	}

	if err := txRepo.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"treasury_id": treasuryID,
		"account_id":  created.ID,
	}).Info("Account joined treasury")

	return created, true, nil
}

func (s *AccountService) joinInTx(ctx context.Context, txRepo *postgresrepo.TxAccountRepo, treasuryID int64, req JoinRequest) (*models.TreasuryAccount, error) {
	if err := txRepo.LockSequence(ctx, treasuryID); err != nil {
		return nil, err
	}

	lastID, err := txRepo.LastID(ctx, treasuryID)
	if err != nil {
		return nil, err
	}

	id, err := structured.Next(lastID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign account id: %w", err)
	}

	return txRepo.InsertAccount(ctx, models.TreasuryAccount{
		ID:         id,
		TreasuryID: treasuryID,
		Account:    req.Account,
		Name:       req.Name,
		Target:     req.Target,
	})
}
