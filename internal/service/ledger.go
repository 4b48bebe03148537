package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// Ledger applies credit deltas to user balances and journals each of them.
// It must be called with repositories bound to the caller's transaction so the
// balance change commits or rolls back together with the state it pays for.
type Ledger struct {
	now func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// Apply adds delta to the user's balance and appends a journal row.
// Returns the new balance.
func (l *Ledger) Apply(
	ctx context.Context,
	repos repository.Repositories,
	userID string,
	delta int,
	kind domain.CreditTransactionType,
	carpoolID string,
) (int, error) {
	balance, err := repos.Users.AdjustBalance(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInsufficientCredits) {
			return 0, err
		}
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	entry := &domain.CreditTransaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    delta,
		Type:      kind,
		CarpoolID: carpoolID,
		CreatedAt: l.now(),
	}
	if err := repos.Transactions.Create(ctx, entry); err != nil {
		return 0, fmt.Errorf("journal credit transaction: %w", err)
	}

	return balance, nil
}
