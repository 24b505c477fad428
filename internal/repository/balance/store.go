package balance

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/lawrag/internal/domain"
)

// store is the consumer interface for balance counters (ISP).
type store interface {
	CounterGet(ctx context.Context, key string, initial int64) (int64, error)
	CounterTake(ctx context.Context, key string, amount, initial int64) (int64, bool, error)
	CounterAdd(ctx context.Context, key string, amount, initial int64) (int64, error)
}

// Store keeps per-user balances as atomic counters. Unknown users start with the initial balance.
type Store struct {
	store   store
	prefix  string
	initial int64
}

// New creates a balance store. Keys follow {prefix}:balance:{user}.
func New(s store, prefix string, initial int64) *Store {
	if prefix == "" {
		prefix = "lawrag"
	}
	return &Store{store: s, prefix: prefix, initial: initial}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":balance:" + userID
}

// Balance returns the current balance of a user.
func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	v, err := s.store.CounterGet(ctx, s.key(userID), s.initial)
	if err != nil {
		return 0, fmt.Errorf("balance GET %s: %w", userID, err)
	}
	return v, nil
}

// HasBalance reports whether the user can pay cost.
func (s *Store) HasBalance(ctx context.Context, userID string, cost int) (bool, error) {
	if cost <= 0 {
		return true, nil
	}
	v, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return v >= int64(cost), nil
}

// Deduct atomically charges cost. A balance below cost yields domain.ErrInsufficientBalance
// and leaves the balance untouched.
func (s *Store) Deduct(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	_, ok, err := s.store.CounterTake(ctx, s.key(userID), int64(cost), s.initial)
	if err != nil {
		return fmt.Errorf("balance deduct %s: %w", userID, err)
	}
	if !ok {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// Refund returns a previously deducted cost.
func (s *Store) Refund(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	if _, err := s.store.CounterAdd(ctx, s.key(userID), int64(cost), s.initial); err != nil {
		return fmt.Errorf("balance refund %s: %w", userID, err)
	}
	return nil
}

// TopUp credits amount to a user and returns the new balance.
func (s *Store) TopUp(ctx context.Context, userID string, amount int) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: top-up amount must be positive", domain.ErrInvalidRequest)
	}
	v, err := s.store.CounterAdd(ctx, s.key(userID), int64(amount), s.initial)
	if err != nil {
		return 0, fmt.Errorf("balance top-up %s: %w", userID, err)
	}
	return v, nil
}
