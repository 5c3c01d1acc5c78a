package ponto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"treasury-reconciler/internal/config"
	"treasury-reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	pageCalls   atomic.Int32
	rejectPages bool
}

func newFakeFeed(t *testing.T) *fakeFeed {
	t.Helper()
	f := &fakeFeed{}

	tx := func(id, amount, ref, created string) map[string]interface{} {
		return map[string]interface{}{
			"id": id,
			"attributes": map[string]interface{}{
				"amount":                json.RawMessage(amount),
				"remittanceInformation": ref,
				"createdAt":             created,
				"updatedAt":             created,
			},
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 1800})
	})
	mux.HandleFunc("GET /accounts/acc-1/transactions", func(w http.ResponseWriter, r *http.Request) {
		f.pageCalls.Add(1)
		if f.rejectPages || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]interface{}
		switch r.URL.Query().Get("before") {
		case "":
			body = map[string]interface{}{
				"data": []interface{}{
					tx("t4", "-12.50", "refund", "2025-03-04T10:00:00Z"),
					tx("t3", "3.00", "+++000/0000/00101+++", "2025-03-03T10:00:00Z"),
				},
				"links": map[string]interface{}{"next": f.server.URL + "/accounts/acc-1/transactions?limit=2&before=t3"},
			}
		case "t3":
			body = map[string]interface{}{
				"data": []interface{}{
					tx("t2", "5", "000000000202", "2025-03-02T10:00:00Z"),
					tx("t1", "0.01", "hello", "2025-03-01T10:00:00Z"),
				},
				"links": map[string]interface{}{},
			}
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeFeed) client() *Client {
	return NewClient(config.PontoConfig{BaseURL: f.server.URL, ClientID: "client", ClientSecret: "secret", PageSize: 2}, f.server.Client())
}

func collect(t *testing.T, seq func(func(models.RawTransaction, error) bool)) ([]models.RawTransaction, error) {
	t.Helper()
	var out []models.RawTransaction
	for tx, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func TestGetAllTransactionsFullHistory(t *testing.T) {
	feed := newFakeFeed(t)
	tokens := NewTokenHolder(nil)

	txs, err := collect(t, feed.client().GetAllTransactionsUntilID(context.Background(), tokens, "acc-1", nil))
	require.NoError(t, err)
	require.Len(t, txs, 4)

	assert.Equal(t, "t4", txs[0].ID)
	assert.Equal(t, int64(-1250), txs[0].AmountMinorUnits)
	assert.Equal(t, int64(300), txs[1].AmountMinorUnits)
	assert.Equal(t, "+++000/0000/00101+++", txs[1].Reference)
	assert.Equal(t, int64(500), txs[2].AmountMinorUnits)
	assert.Equal(t, int64(1), txs[3].AmountMinorUnits)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), txs[3].CreatedAt.UTC())

	assert.Equal(t, int32(1), feed.tokenCalls.Load(), "token must be reused across pages")
	assert.Equal(t, int32(2), feed.pageCalls.Load())
}

func TestGetAllTransactionsStopsAtCursor(t *testing.T) {
	feed := newFakeFeed(t)
	since := "t3"

	txs, err := collect(t, feed.client().GetAllTransactionsUntilID(context.Background(), NewTokenHolder(nil), "acc-1", &since))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "t4", txs[0].ID)
	assert.Equal(t, int32(1), feed.pageCalls.Load(), "second page must not be fetched")
}

func TestGetAllTransactionsLazy(t *testing.T) {
	feed := newFakeFeed(t)
	seq := feed.client().GetAllTransactionsUntilID(context.Background(), NewTokenHolder(nil), "acc-1", nil)
	assert.Equal(t, int32(0), feed.pageCalls.Load())

	for range seq {
		break
	}
	assert.Equal(t, int32(1), feed.pageCalls.Load())
}

func TestGetAllTransactionsUnauthorized(t *testing.T) {
	feed := newFakeFeed(t)
	feed.rejectPages = true
	tokens := NewTokenHolder(nil)

	_, err := collect(t, feed.client().GetAllTransactionsUntilID(context.Background(), tokens, "acc-1", nil))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, ok := tokens.Get("client")
	assert.False(t, ok, "rejected token must be dropped")
}

func TestTokenHolderExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewTokenHolder(func() time.Time { return now })

	h.Put("client", "tok", time.Minute)
	got, ok := h.Get("client")
	require.True(t, ok)
	assert.Equal(t, "tok", got)

	now = now.Add(time.Minute - expirySkew)
	_, ok = h.Get("client")
	assert.False(t, ok, "token inside the skew margin must be treated as expired")
}

func TestTokenRefreshedAfterExpiry(t *testing.T) {
	feed := newFakeFeed(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := NewTokenHolder(func() time.Time { return now })
	client := feed.client()

	_, err := collect(t, client.GetAllTransactionsUntilID(context.Background(), tokens, "acc-1", nil))
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = collect(t, client.GetAllTransactionsUntilID(context.Background(), tokens, "acc-1", nil))
	require.NoError(t, err)

	assert.Equal(t, int32(2), feed.tokenCalls.Load())
}
