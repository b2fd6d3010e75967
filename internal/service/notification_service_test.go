package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"flowpay-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Delivers(t *testing.T) {
	var mu sync.Mutex
	var received NotificationPayload
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 5*time.Second, srv.Client(), zerolog.Nop())
	txn := &domain.Transaction{
		ID:        uuid.New(),
		Type:      domain.TransactionTypePix,
		Status:    domain.TransactionStatusCompleted,
		Amount:    decimal.RequireFromString("100.00"),
		Fee:       decimal.Zero,
		RiskScore: 5,
	}

	n.NotifyTransaction(context.Background(), txn)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "TRANSACTION_COMPLETED", received.EventType)
	assert.Equal(t, txn.ID.String(), received.TransactionID)
	assert.Equal(t, "PIX", received.Type)
	assert.Equal(t, "100", received.Amount)
	assert.Equal(t, 5, received.RiskScore)
}

func TestWebhookNotifier_EmptyURLDisablesDelivery(t *testing.T) {
	n := NewWebhookNotifier("", time.Second, http.DefaultClient, zerolog.Nop())
	// Must not panic or post anywhere.
	n.NotifyTransaction(context.Background(), &domain.Transaction{ID: uuid.New()})
}

func TestWebhookNotifier_BreakerOpensAfterFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, srv.Client(), zerolog.Nop())

	for i := 0; i < 10; i++ {
		n.deliver(NotificationPayload{TransactionID: uuid.New().String()})
	}

	// The breaker trips after 5 consecutive failures; later deliveries
	// are rejected without reaching the server.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, calls)
}
