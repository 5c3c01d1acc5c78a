package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"treasury-reconciler/internal/models"

	"github.com/jmoiron/sqlx"
)

const treasuryColumns = `id, name, sync_provider, sync_provider_account, sync_strategy, sync_strategy_config, token, created_at`

type TreasuryRepo struct {
	db *sqlx.DB
}

func NewTreasuryRepo(db *sqlx.DB) *TreasuryRepo {
	return &TreasuryRepo{db: db}
}

// ListBySyncProvider returns every treasury synced through the given provider.
func (r *TreasuryRepo) ListBySyncProvider(ctx context.Context, provider string) ([]models.Treasury, error) {
	query := `SELECT ` + treasuryColumns + ` FROM treasury WHERE sync_provider = $1 ORDER BY id ASC`

	var treasuries []models.Treasury
	if err := r.db.SelectContext(ctx, &treasuries, query, provider); err != nil {
		return nil, fmt.Errorf("failed to list treasuries: %w", err)
	}
	return treasuries, nil
}

func (r *TreasuryRepo) GetTreasury(ctx context.Context, id int64) (*models.Treasury, error) {
	var treasury models.Treasury
	query := `SELECT ` + treasuryColumns + ` FROM treasury WHERE id = $1`
	if err := r.db.GetContext(ctx, &treasury, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTreasuryNotFound
		}
		return nil, fmt.Errorf("failed to get treasury: %w", err)
	}
	return &treasury, nil
}
