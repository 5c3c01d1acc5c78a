package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"treasury-reconciler/internal/models"
)

// GetCursor returns the durable resume point of a treasury's feed, or nil when none was saved yet.
func (r *OperationRepo) GetCursor(ctx context.Context, treasuryID int64) (*models.SyncCursor, error) {
	var cursor models.SyncCursor
	query := `SELECT treasury_id, operation_id, updated_at FROM treasury_sync_cursor WHERE treasury_id = $1`
	if err := r.db.GetContext(ctx, &cursor, query, treasuryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}
	return &cursor, nil
}

func (r *OperationRepo) SaveCursor(ctx context.Context, treasuryID int64, operationID string) error {
	query := `
		INSERT INTO treasury_sync_cursor (treasury_id, operation_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (treasury_id) DO UPDATE
		SET operation_id = EXCLUDED.operation_id, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, treasuryID, operationID); err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}
