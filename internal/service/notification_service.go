package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"flowpay-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// NotificationPayload is the JSON structure posted to the configured webhook
// after a ledger entry completes.
type NotificationPayload struct {
	EventType     string `json:"event_type"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	RiskScore     int    `json:"risk_score"`
	Timestamp     int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier implements ports.NotificationService: it posts completed
// entries to an external webhook, behind a circuit breaker. Delivery is
// best-effort and runs on its own goroutine; failures never touch the ledger.
type WebhookNotifier struct {
	url        string
	httpClient HTTPClient
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. An empty URL disables
// delivery entirely.
func NewWebhookNotifier(url string, timeout time.Duration, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "transaction-webhook",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("webhook circuit breaker state changed")
		},
	})
	return &WebhookNotifier{
		url:        url,
		httpClient: httpClient,
		breaker:    breaker,
		timeout:    timeout,
		log:        log,
	}
}

// NotifyTransaction posts the completed entry to the webhook asynchronously.
func (n *WebhookNotifier) NotifyTransaction(ctx context.Context, transaction *domain.Transaction) {
	if n.url == "" {
		return
	}

	payload := NotificationPayload{
		EventType:     "TRANSACTION_COMPLETED",
		TransactionID: transaction.ID.String(),
		Type:          string(transaction.Type),
		Status:        string(transaction.Status),
		Amount:        transaction.Amount.String(),
		Fee:           transaction.Fee.String(),
		RiskScore:     transaction.RiskScore,
		Timestamp:     time.Now().Unix(),
	}

	go n.deliver(payload)
}

func (n *WebhookNotifier) deliver(payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Str("tx_id", payload.TransactionID).Msg("webhook: failed to marshal payload")
		return
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &unexpectedStatusError{status: resp.StatusCode}
		}
		return nil, nil
	})
	if err != nil {
		n.log.Warn().Err(err).Str("tx_id", payload.TransactionID).Msg("webhook: delivery failed")
		return
	}

	n.log.Debug().Str("tx_id", payload.TransactionID).Msg("webhook: delivered")
}

type unexpectedStatusError struct{ status int }

func (e *unexpectedStatusError) Error() string {
	return http.StatusText(e.status)
}
