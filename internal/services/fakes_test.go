package services

import (
	"context"
	"errors"
	"io"
	"iter"
	"sort"
	"sync"
	"time"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"
	"treasury-reconciler/internal/repositories/postgresrepo"
	"treasury-reconciler/internal/repositories/redisrepo"

	"github.com/sirupsen/logrus"
)

func testLogger() logging.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strptr(s string) *string { return &s }

func intptr(i int) *int { return &i }

type opKey struct {
	treasuryID int64
	id         string
}

type fakeStore struct {
	mu          sync.Mutex
	ops         map[opKey]models.TreasuryOperation
	cursors     map[int64]string
	upsertCalls int
	upsertErr   error
	promoted    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ops:     make(map[opKey]models.TreasuryOperation),
		cursors: make(map[int64]string),
	}
}

func (s *fakeStore) LatestBankOperation(_ context.Context, treasuryID int64) (*models.TreasuryOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.TreasuryOperation
	for k, op := range s.ops {
		if k.treasuryID != treasuryID || op.Origin == models.OriginCard {
			continue
		}
		if latest == nil || op.CreatedAt.After(latest.CreatedAt) {
			op := op
			latest = &op
		}
	}
	if latest == nil {
		return nil, postgresrepo.ErrOperationNotFound
	}
	return latest, nil
}

func (s *fakeStore) GetCursor(_ context.Context, treasuryID int64) (*models.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.cursors[treasuryID]
	if !ok {
		return nil, nil
	}
	return &models.SyncCursor{TreasuryID: treasuryID, OperationID: id}, nil
}

func (s *fakeStore) SaveCursor(_ context.Context, treasuryID int64, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[treasuryID] = operationID
	return nil
}

func (s *fakeStore) UpsertIgnoreDuplicates(_ context.Context, operations []models.TreasuryOperation) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertCalls++
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	var inserted []string
	for _, op := range operations {
		k := opKey{op.TreasuryID, op.ID}
		if _, ok := s.ops[k]; ok {
			continue
		}
		s.ops[k] = op
		inserted = append(inserted, op.ID)
	}
	return inserted, nil
}

func (s *fakeStore) PendingPeriodicInWindow(_ context.Context, treasuryID int64, from, to time.Time) ([]models.TreasuryOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := make(map[string]struct{})
	for k, op := range s.ops {
		if k.treasuryID == treasuryID && op.Metadata.Periodic != nil {
			for _, id := range op.Metadata.Periodic.GroupedOperations {
				grouped[id] = struct{}{}
			}
		}
	}

	var out []models.TreasuryOperation
	for k, op := range s.ops {
		if k.treasuryID != treasuryID || op.Status != models.StatusPendingPeriodic || op.Direction != models.DirectionIn {
			continue
		}
		if op.CreatedAt.Before(from) || !op.CreatedAt.Before(to) {
			continue
		}
		if _, ok := grouped[op.ID]; ok {
			continue
		}
		out = append(out, op)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *fakeStore) Promote(_ context.Context, treasuryID int64, id string, metadata models.OperationMetadata) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := opKey{treasuryID, id}
	op, ok := s.ops[k]
	if !ok || op.Status != models.StatusPendingPeriodic {
		return false, nil
	}
	op.Status = models.StatusPending
	op.Metadata = metadata
	s.ops[k] = op
	s.promoted = append(s.promoted, id)
	return true, nil
}

func (s *fakeStore) get(treasuryID int64, id string) (models.TreasuryOperation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[opKey{treasuryID, id}]
	return op, ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ops)
}

// fakeSource serves a fixed feed, newest first.
type fakeSource struct {
	feed   []models.RawTransaction
	err    error
	calls  int
	sinces []*string
}

func (f *fakeSource) GetAllTransactionsUntilID(_ context.Context, _ *ponto.TokenHolder, _ string, sinceID *string) iter.Seq2[models.RawTransaction, error] {
	f.calls++
	f.sinces = append(f.sinces, sinceID)
	return func(yield func(models.RawTransaction, error) bool) {
		for _, tx := range f.feed {
			if sinceID != nil && tx.ID == *sinceID {
				return
			}
			if !yield(tx, nil) {
				return
			}
		}
		if f.err != nil {
			yield(models.RawTransaction{}, f.err)
		}
	}
}

type fakeAccounts struct {
	byID    map[string]models.TreasuryAccount
	failing map[string]error
	lookups int
}

func (f *fakeAccounts) FindAccount(_ context.Context, treasuryID int64, id string) (*models.TreasuryAccount, error) {
	f.lookups++
	if err, ok := f.failing[id]; ok {
		return nil, err
	}
	account, ok := f.byID[id]
	if !ok || account.TreasuryID != treasuryID {
		return nil, postgresrepo.ErrAccountNotFound
	}
	return &account, nil
}

func (f *fakeAccounts) FindByAddress(_ context.Context, treasuryID int64, address string) (*models.TreasuryAccount, error) {
	for _, account := range f.byID {
		if account.TreasuryID == treasuryID && account.Account == address {
			account := account
			return &account, nil
		}
	}
	return nil, postgresrepo.ErrAccountNotFound
}

type fakeTargets map[string]int64

func (f fakeTargets) Targets(context.Context, int64) (map[string]int64, error) {
	return f, nil
}

type fakeNotifier struct {
	notified []models.TreasuryOperation
	err      error
}

func (f *fakeNotifier) NotifySettleable(_ context.Context, _ models.Treasury, operations []models.TreasuryOperation) error {
	f.notified = append(f.notified, operations...)
	return f.err
}

func (f *fakeNotifier) ids() []string {
	ids := make([]string, 0, len(f.notified))
	for _, op := range f.notified {
		ids = append(ids, op.ID)
	}
	return ids
}

type fakeLocker struct {
	held     bool
	released int
}

func (f *fakeLocker) AcquireAggregation(context.Context, int64, string, time.Duration) (func(context.Context) error, error) {
	if f.held {
		return nil, redisrepo.ErrLockNotAcquired
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.released++
		return nil
	}, nil
}

type fakeTreasuries struct {
	byID    map[int64]models.Treasury
	listErr error
}

func (f *fakeTreasuries) ListBySyncProvider(_ context.Context, provider string) ([]models.Treasury, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Treasury
	for _, t := range f.byID {
		if t.SyncProvider != nil && *t.SyncProvider == provider {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeTreasuries) GetTreasury(_ context.Context, id int64) (*models.Treasury, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, postgresrepo.ErrTreasuryNotFound
	}
	return &t, nil
}

var errStoreDown = errors.New("store unavailable")
