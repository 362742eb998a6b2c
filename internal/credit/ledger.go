package credit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
)

// Ledger is a Meter backed by the external credit-ledger HTTP API.
type Ledger struct {
	client *resty.Client
}

// NewLedger constructs a ledger client for the given base URL.
func NewLedger(baseURL, apiKey string, timeout time.Duration) *Ledger {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Ledger{client: client}
}

type balanceResponse struct {
	UserID  string  `json:"userID"`
	Balance float64 `json:"balance"`
}

func (l *Ledger) Balance(ctx context.Context, userID string) (float64, error) {
	var out balanceResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParam("userID", userID).
		SetResult(&out).
		Get("/balance")
	if err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return out.Balance, nil
	case http.StatusNotFound:
		return 0, fmt.Errorf("ledger user %s: %w", userID, apperr.ErrNotFound)
	default:
		return 0, fmt.Errorf("ledger balance: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
}

func (l *Ledger) Commit(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return nil
	}

	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"userID": userID, "amount": amount}).
		Post("/charge")
	if err != nil {
		return fmt.Errorf("ledger charge: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ledger charge: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
