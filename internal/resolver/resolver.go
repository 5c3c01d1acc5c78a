// Package resolver maps free-text payment references to treasury accounts.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/repositories/postgresrepo"
	"treasury-reconciler/internal/structured"
)

// AccountFinder looks up an account by its structured id.
// It returns postgresrepo.ErrAccountNotFound when no account matches.
type AccountFinder interface {
	FindAccount(ctx context.Context, treasuryID int64, id string) (*models.TreasuryAccount, error)
}

type Resolver struct {
	accounts AccountFinder
}

func New(accounts AccountFinder) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve returns the account a payment reference points at, or nil when the
// reference is not a known structured id. The error is non-nil only when the
// account store could not be read.
func (r *Resolver) Resolve(ctx context.Context, message string, treasuryID int64) (*models.TreasuryAccount, error) {
	key := structured.Clean(message)
	if !structured.Valid(key) {
		return nil, nil
	}
	return r.lookup(ctx, treasuryID, key)
}

func (r *Resolver) lookup(ctx context.Context, treasuryID int64, key string) (*models.TreasuryAccount, error) {
	account, err := r.accounts.FindAccount(ctx, treasuryID, key)
	if err != nil {
		if errors.Is(err, postgresrepo.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find account %s: %w", key, err)
	}
	return account, nil
}

type batchKey struct {
	treasuryID int64
	key        string
}

// Batch memoizes lookups for the duration of one reconciliation batch.
// Misses are memoized too; store errors are not, so a later operation with
// the same reference retries the read.
type Batch struct {
	resolver *Resolver
	seen     map[batchKey]*models.TreasuryAccount
	lookups  int
}

func (r *Resolver) NewBatch() *Batch {
	return &Batch{
		resolver: r,
		seen:     make(map[batchKey]*models.TreasuryAccount),
	}
}

func (b *Batch) Resolve(ctx context.Context, message string, treasuryID int64) (*models.TreasuryAccount, error) {
	key := structured.Clean(message)
	if !structured.Valid(key) {
		return nil, nil
	}

	k := batchKey{treasuryID: treasuryID, key: key}
	if account, ok := b.seen[k]; ok {
		return account, nil
	}

	b.lookups++
	account, err := b.resolver.lookup(ctx, treasuryID, key)
	if err != nil {
		return nil, err
	}
	b.seen[k] = account
	return account, nil
}

// Lookups is the number of store reads issued by this batch.
func (b *Batch) Lookups() int {
	return b.lookups
}
