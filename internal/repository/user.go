package repository

import (
	"context"

	"carpool/internal/domain"
)

// UserRepository defines the persistence operations for users and their balances.
type UserRepository interface {
	// Create adds a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// AdjustBalance atomically adds delta to the user's credits and returns
	// the new balance. A negative result is rejected with ErrInsufficientCredits.
	AdjustBalance(ctx context.Context, id string, delta int) (int, error)
}

// CreditTransactionRepository defines the persistence operations for the credit journal.
type CreditTransactionRepository interface {
	// Create appends a journal row.
	Create(ctx context.Context, tx *domain.CreditTransaction) error

	// ListByUser retrieves a user's journal, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error)
}

// PayoutRepository defines the persistence operations for driver payouts.
type PayoutRepository interface {
	// Create persists a new payout.
	Create(ctx context.Context, payout *domain.Payout) error

	// ListPending retrieves pending payouts, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.Payout, error)

	// Update updates an existing payout.
	Update(ctx context.Context, payout *domain.Payout) error
}
