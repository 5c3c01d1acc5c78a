package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"treasury-reconciler/internal/models"

	"github.com/jmoiron/sqlx"
)

type TxAccountRepo struct {
	tx *sqlx.Tx
}

func NewTxAccountRepo(tx *sqlx.Tx) *TxAccountRepo {
	return &TxAccountRepo{tx: tx}
}

func (r *TxAccountRepo) Commit() error {
	return r.tx.Commit()
}

func (r *TxAccountRepo) Rollback() error {
	return r.tx.Rollback()
}

// LockSequence serializes id assignment for one treasury until the transaction ends.
func (r *TxAccountRepo) LockSequence(ctx context.Context, treasuryID int64) error {
	if _, err := r.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, treasuryID); err != nil {
		return fmt.Errorf("failed to lock account sequence: %w", err)
	}
	return nil
}

// LastID returns the highest structured id of a treasury, or "" when it has no accounts.
func (r *TxAccountRepo) LastID(ctx context.Context, treasuryID int64) (string, error) {
	var id string
	query := `SELECT id FROM treasury_account WHERE treasury_id = $1 ORDER BY id DESC LIMIT 1`
	if err := r.tx.GetContext(ctx, &id, query, treasuryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get last account id: %w", err)
	}
	return id, nil
}

func (r *TxAccountRepo) InsertAccount(ctx context.Context, account models.TreasuryAccount) (*models.TreasuryAccount, error) {
	query := `
		INSERT INTO treasury_account (id, treasury_id, account, name, target, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, treasury_id, account, name, target, created_at
	`
	var created models.TreasuryAccount
	err := r.tx.GetContext(ctx, &created, query,
		account.ID, account.TreasuryID, account.Account, account.Name, account.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	return &created, nil
}
