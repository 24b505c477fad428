// Package accounting holds the in-process credit ledger used when no shared store is configured.
package accounting

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/lawrag/internal/domain"
)

// Ledger is an in-memory credit ledger. Unknown users start with the initial balance.
// Balances are lost on restart; use repository/balance for a shared, durable ledger.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int64
	initial  int64
}

// NewLedger creates an empty ledger.
func NewLedger(initial int64) *Ledger {
	return &Ledger{balances: make(map[string]int64), initial: initial}
}

func (l *Ledger) get(userID string) int64 {
	if b, ok := l.balances[userID]; ok {
		return b
	}
	return l.initial
}

// Balance returns the current balance of a user.
func (l *Ledger) Balance(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(userID), nil
}

// HasBalance reports whether the user can pay cost.
func (l *Ledger) HasBalance(ctx context.Context, userID string, cost int) (bool, error) {
	if cost <= 0 {
		return true, nil
	}
	b, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return b >= int64(cost), nil
}

// Deduct charges cost or fails with domain.ErrInsufficientBalance leaving the balance untouched.
func (l *Ledger) Deduct(_ context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.get(userID)
	if b < int64(cost) {
		return fmt.Errorf("%w: balance %d, cost %d", domain.ErrInsufficientBalance, b, cost)
	}
	l.balances[userID] = b - int64(cost)
	return nil
}

// Refund returns a previously deducted cost.
func (l *Ledger) Refund(_ context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = l.get(userID) + int64(cost)
	return nil
}

// TopUp credits amount to a user and returns the new balance.
func (l *Ledger) TopUp(_ context.Context, userID string, amount int) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: top-up amount must be positive", domain.ErrInvalidRequest)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(userID) + int64(amount)
	l.balances[userID] = b
	return b, nil
}
