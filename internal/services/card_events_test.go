package services

import (
	"context"
	"testing"
	"time"

	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/repositories/postgresrepo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCardEventService(store *fakeStore, notifier *fakeNotifier) *CardEventService {
	treasuries := &fakeTreasuries{byID: map[int64]models.Treasury{
		testTreasuryID: paygTreasury(),
	}}
	return NewCardEventService(store, knownAccounts(), treasuries, notifier, nil, testLogger())
}

func TestCardOperation(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		event         models.CardEvent
		wantID        string
		wantDirection models.Direction
		wantErr       bool
	}{
		{
			name:          "payment is an incoming operation",
			event:         models.CardEvent{EventID: "evt_1", Kind: models.CardEventPayment, Amount: 1250, CreatedAt: at},
			wantID:        "evt_1",
			wantDirection: models.DirectionIn,
		},
		{
			name:          "refund is an outgoing operation with its own id",
			event:         models.CardEvent{EventID: "evt_1", Kind: models.CardEventRefund, Amount: 1250, CreatedAt: at},
			wantID:        "evt_1-refund",
			wantDirection: models.DirectionOut,
		},
		{
			name:    "unknown kind",
			event:   models.CardEvent{EventID: "evt_2", Kind: "chargeback"},
			wantErr: true,
		},
		{
			name:    "missing id",
			event:   models.CardEvent{Kind: models.CardEventPayment},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			op, err := cardOperation(testTreasuryID, tt.event)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("cardOperation: expected error, got %+v", op)
				}
				return
			}
			if err != nil {
				t.Fatalf("cardOperation: unexpected error: %v", err)
			}
			if op.ID != tt.wantID || op.Direction != tt.wantDirection {
				t.Fatalf("cardOperation: got (%s, %s), want (%s, %s)", op.ID, op.Direction, tt.wantID, tt.wantDirection)
			}
			if op.Amount != tt.event.Amount || op.Status != models.StatusPending {
				t.Fatalf("cardOperation: got amount %d status %s", op.Amount, op.Status)
			}
		})
	}
}

func TestProcessTreasuryEvents(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := newCardEventService(store, notifier)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	events := []models.CardEvent{
		{EventID: "evt_1", Kind: models.CardEventPayment, Amount: 1000, Account: strptr("0xabc"), OrderID: strptr("order-9"), CreatedAt: at},
		{EventID: "evt_1", Kind: models.CardEventRefund, Amount: 1000, Account: strptr("0xabc"), CreatedAt: at.Add(time.Hour)},
		{EventID: "evt_2", Kind: models.CardEventPayment, Amount: 500, Account: strptr("0xunknown"), CreatedAt: at},
		{EventID: "evt_3", Kind: models.CardEventPayment, Amount: 500, CreatedAt: at},
		{EventID: "evt_4", Kind: "chargeback", Amount: 500, CreatedAt: at},
	}

	require.NoError(t, svc.ProcessTreasuryEvents(context.Background(), testTreasuryID, events))
	assert.Equal(t, 4, store.count())

	payment, _ := store.get(testTreasuryID, "evt_1")
	assert.Equal(t, models.StatusPending, payment.Status)
	assert.Equal(t, "0xabc", *payment.Account)
	assert.Equal(t, "order-9", *payment.Metadata.Payg.OrderID)

	refund, _ := store.get(testTreasuryID, "evt_1-refund")
	assert.Equal(t, models.DirectionOut, refund.Direction)
	assert.Equal(t, models.OriginCard, refund.Origin)

	unknown, _ := store.get(testTreasuryID, "evt_2")
	assert.Equal(t, models.StatusProcessedAccountMissing, unknown.Status)
	missing, _ := store.get(testTreasuryID, "evt_3")
	assert.Equal(t, models.StatusProcessedAccountMissing, missing.Status)

	assert.ElementsMatch(t, []string{"evt_1", "evt_1-refund"}, notifier.ids())
}

func TestProcessTreasuryEventsRedelivery(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := newCardEventService(store, notifier)
	events := []models.CardEvent{
		{EventID: "evt_1", Kind: models.CardEventPayment, Amount: 1000, Account: strptr("0xabc")},
	}
	ctx := context.Background()

	require.NoError(t, svc.ProcessTreasuryEvents(ctx, testTreasuryID, events))
	events[0].Amount = 9999
	require.NoError(t, svc.ProcessTreasuryEvents(ctx, testTreasuryID, events))

	op, _ := store.get(testTreasuryID, "evt_1")
	assert.Equal(t, int64(1000), op.Amount)
	assert.Len(t, notifier.notified, 1, "redelivered events are not notified again")
}

func TestProcessTreasuryEventsUnknownTreasury(t *testing.T) {
	store := newFakeStore()
	svc := newCardEventService(store, &fakeNotifier{})

	err := svc.ProcessTreasuryEvents(context.Background(), 404, []models.CardEvent{
		{EventID: "evt_1", Kind: models.CardEventPayment, Amount: 1},
	})
	require.ErrorIs(t, err, postgresrepo.ErrTreasuryNotFound)
	assert.Equal(t, 0, store.upsertCalls)
}
