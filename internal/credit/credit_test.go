package credit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
)

func TestMemoryMeter(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMeter()
	m.SetBalance("u1", 10)

	balance, err := m.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, balance)

	require.NoError(t, m.Commit(ctx, "u1", 3.5))
	balance, err = m.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 6.5, balance)

	// Zero commits are no-ops and never fail.
	require.NoError(t, m.Commit(ctx, "u1", 0))

	_, err = m.Balance(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLedgerBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/balance":
			if r.URL.Query().Get("userID") == "u1" {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(balanceResponse{UserID: "u1", Balance: 4.2})
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ledger := NewLedger(srv.URL, "test-key", 2*time.Second)

	balance, err := ledger.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4.2, balance)

	_, err = ledger.Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLedgerCommit(t *testing.T) {
	var got struct {
		UserID string  `json:"userID"`
		Amount float64 `json:"amount"`
	}
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/charge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ledger := NewLedger(srv.URL, "", 2*time.Second)

	require.NoError(t, ledger.Commit(context.Background(), "u1", 2))
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 2.0, got.Amount)

	// Nothing to charge, nothing sent.
	require.NoError(t, ledger.Commit(context.Background(), "u1", 0))
	assert.Equal(t, 1, calls)
}
