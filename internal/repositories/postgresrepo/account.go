package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"treasury-reconciler/internal/models"

	"github.com/jmoiron/sqlx"
)

type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// FindAccount looks an account up by its structured id within one treasury.
func (r *AccountRepo) FindAccount(ctx context.Context, treasuryID int64, id string) (*models.TreasuryAccount, error) {
	var account models.TreasuryAccount
	query := `SELECT id, treasury_id, account, name, target, created_at FROM treasury_account WHERE treasury_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &account, query, treasuryID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// FindByAddress returns the registration of a beneficiary address, if any.
func (r *AccountRepo) FindByAddress(ctx context.Context, treasuryID int64, address string) (*models.TreasuryAccount, error) {
	var account models.TreasuryAccount
	query := `SELECT id, treasury_id, account, name, target, created_at FROM treasury_account WHERE treasury_id = $1 AND account = $2`
	if err := r.db.GetContext(ctx, &account, query, treasuryID, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by address: %w", err)
	}
	return &account, nil
}

// Targets returns the account-specific contribution targets of a treasury, keyed by address.
func (r *AccountRepo) Targets(ctx context.Context, treasuryID int64) (map[string]int64, error) {
	rows := []struct {
		Account string `db:"account"`
		Target  int64  `db:"target"`
	}{}
	query := `SELECT account, target FROM treasury_account WHERE treasury_id = $1 AND target IS NOT NULL`
	if err := r.db.SelectContext(ctx, &rows, query, treasuryID); err != nil {
		return nil, fmt.Errorf("failed to get account targets: %w", err)
	}

	targets := make(map[string]int64, len(rows))
	for _, row := range rows {
		targets[row.Account] = row.Target
	}
	return targets, nil
}

// BeginTx starts a transaction and returns a transactional repository
func (r *AccountRepo) BeginTx(ctx context.Context) (*TxAccountRepo, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return NewTxAccountRepo(tx), nil
}
