package credit

import (
	"context"
	"fmt"
	"sync"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
)

// MemoryMeter is an in-process Meter for tests and local mode.
type MemoryMeter struct {
	mu       sync.Mutex
	balances map[string]float64
}

// NewMemoryMeter constructs a meter with no accounts.
func NewMemoryMeter() *MemoryMeter {
	return &MemoryMeter{balances: make(map[string]float64)}
}

// SetBalance sets a user's balance, creating the account if needed.
func (m *MemoryMeter) SetBalance(userID string, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = balance
}

func (m *MemoryMeter) Balance(ctx context.Context, userID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[userID]
	if !ok {
		return 0, fmt.Errorf("ledger user %s: %w", userID, apperr.ErrNotFound)
	}
	return balance, nil
}

func (m *MemoryMeter) Commit(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[userID]
	if !ok {
		return fmt.Errorf("ledger user %s: %w", userID, apperr.ErrNotFound)
	}
	m.balances[userID] = balance - amount
	return nil
}
