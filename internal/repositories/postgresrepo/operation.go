package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"treasury-reconciler/internal/models"

	"github.com/jmoiron/sqlx"
)

var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrTreasuryNotFound  = errors.New("treasury not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrStatusConflict    = errors.New("operation status changed concurrently")
)

const upsertBatchSize = 100

const operationColumns = `id, treasury_id, created_at, updated_at, direction, amount, status, message, metadata, tx_hash, account, origin`

type OperationRepo struct {
	db *sqlx.DB
}

func NewOperationRepo(db *sqlx.DB) *OperationRepo {
	return &OperationRepo{db: db}
}

// LatestBankOperation returns the newest bank-feed operation of a treasury by
// source timestamp. Card operations never appear in the bank feed.
func (r *OperationRepo) LatestBankOperation(ctx context.Context, treasuryID int64) (*models.TreasuryOperation, error) {
	var op models.TreasuryOperation
	query := `SELECT ` + operationColumns + `
		FROM treasury_operations
		WHERE treasury_id = $1 AND origin = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &op, query, treasuryID, models.OriginBank); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get latest operation: %w", err)
	}
	return &op, nil
}

func (r *OperationRepo) GetOperation(ctx context.Context, treasuryID int64, id string) (*models.TreasuryOperation, error) {
	var op models.TreasuryOperation
	query := `SELECT ` + operationColumns + ` FROM treasury_operations WHERE treasury_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &op, query, treasuryID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return &op, nil
}

// UpsertIgnoreDuplicates inserts operations keyed by (id, treasury_id). Rows
// that already exist are left untouched. It returns the ids actually inserted.
func (r *OperationRepo) UpsertIgnoreDuplicates(ctx context.Context, operations []models.TreasuryOperation) ([]string, error) {
	if len(operations) == 0 {
		return nil, nil
	}

	operations = dedupe(operations)
	inserted := make([]string, 0, len(operations))

	for i := 0; i < len(operations); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(operations) {
			end = len(operations)
		}

		ids, err := r.insertBatch(ctx, operations[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to upsert batch [%d:%d]: %w", i, end, err)
		}
		inserted = append(inserted, ids...)
	}

	return inserted, nil
}

func (r *OperationRepo) insertBatch(ctx context.Context, ops []models.TreasuryOperation) ([]string, error) {
	const cols = 12
	args := make([]interface{}, 0, cols*len(ops))
	values := make([]string, 0, len(ops))

	for i, op := range ops {
		base := i*cols + 1
		placeholders := make([]string, cols)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j)
		}
		values = append(values, "("+strings.Join(placeholders, ",")+")")

		args = append(args,
			op.ID,
			op.TreasuryID,
			op.CreatedAt,
			op.UpdatedAt,
			op.Direction,
			op.Amount,
			op.Status,
			op.Message,
			op.Metadata,
			op.TxHash,
			op.Account,
			originOrBank(op.Origin),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO treasury_operations (%s)
		VALUES %s
		ON CONFLICT (id, treasury_id) DO NOTHING
		RETURNING id
	`, operationColumns, strings.Join(values, ","))

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("bulk INSERT ON CONFLICT DO NOTHING failed: %w", err)
	}
	return ids, nil
}

func originOrBank(origin models.Origin) models.Origin {
	if origin == "" {
		return models.OriginBank
	}
	return origin
}

func dedupe(ops []models.TreasuryOperation) []models.TreasuryOperation {
	type key struct {
		id         string
		treasuryID int64
	}
	seen := make(map[key]struct{}, len(ops))
	out := make([]models.TreasuryOperation, 0, len(ops))
	for _, op := range ops {
		k := key{op.ID, op.TreasuryID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, op)
	}
	return out
}

// PendingPeriodicInWindow returns incoming contributions in [from, to) that
// are not already subsumed by a promoted representative.
func (r *OperationRepo) PendingPeriodicInWindow(ctx context.Context, treasuryID int64, from, to time.Time) ([]models.TreasuryOperation, error) {
	query := `SELECT ` + prefixed("o", operationColumns) + `
		FROM treasury_operations o
		WHERE o.treasury_id = $1
		  AND o.status = $2
		  AND o.created_at >= $3
		  AND o.created_at < $4
		  AND o.direction = $5
		  AND NOT EXISTS (
			SELECT 1 FROM treasury_operations g
			WHERE g.treasury_id = o.treasury_id
			  AND g.metadata -> 'grouped_operations' @> jsonb_build_array(o.id)
		  )
		ORDER BY o.created_at ASC, o.id ASC`

	var ops []models.TreasuryOperation
	if err := r.db.SelectContext(ctx, &ops, query, treasuryID, models.StatusPendingPeriodic, from, to, models.DirectionIn); err != nil {
		return nil, fmt.Errorf("failed to get pending periodic operations: %w", err)
	}
	return ops, nil
}

// Promote turns a pending-periodic operation into a settleable one. It returns
// false when the row is no longer pending-periodic.
func (r *OperationRepo) Promote(ctx context.Context, treasuryID int64, id string, metadata models.OperationMetadata) (bool, error) {
	query := `
		UPDATE treasury_operations
		SET status = $1, metadata = $2
		WHERE treasury_id = $3 AND id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, models.StatusPending, metadata, treasuryID, id, models.StatusPendingPeriodic)
	if err != nil {
		return false, fmt.Errorf("failed to promote operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// UpdateStatus moves an operation along the status machine. The update only
// applies while the row still has status from.
func (r *OperationRepo) UpdateStatus(ctx context.Context, treasuryID int64, id string, from, to models.OperationStatus, txHash *string) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	query := `
		UPDATE treasury_operations
		SET status = $1, tx_hash = COALESCE($2, tx_hash)
		WHERE treasury_id = $3 AND id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, to, txHash, treasuryID, id, from)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *OperationRepo) ListByStatus(ctx context.Context, treasuryID int64, status models.OperationStatus, limit int) ([]models.TreasuryOperation, error) {
	query := `SELECT ` + operationColumns + `
		FROM treasury_operations
		WHERE treasury_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var ops []models.TreasuryOperation
	if err := r.db.SelectContext(ctx, &ops, query, treasuryID, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
