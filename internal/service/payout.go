package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// DefaultPayoutMaxAttempts is the number of attempts before a payout is marked FAILED.
const DefaultPayoutMaxAttempts = 5

const payoutBatchSize = 20

// PayoutService retries driver payouts that could not be credited at validation time.
type PayoutService struct {
	store       repository.Store
	ledger      *Ledger
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// NewPayoutService creates a new PayoutService.
func NewPayoutService(store repository.Store, ledger *Ledger, logger *zap.Logger, maxAttempts int) *PayoutService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPayoutMaxAttempts
	}

	return &PayoutService{
		store:       store,
		ledger:      ledger,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// RetryStats summarizes one retry pass.
type RetryStats struct {
	Paid   int
	Failed int
	Queued int
}

// RetryPending makes one attempt at every pending payout in the batch.
// Each credit and its payout status change commit together.
func (s *PayoutService) RetryPending(ctx context.Context) (RetryStats, error) {
	var stats RetryStats

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		payouts, err := repos.Payouts.ListPending(ctx, payoutBatchSize)
		if err != nil {
			return fmt.Errorf("list pending payouts: %w", err)
		}

		for _, payout := range payouts {
			payout.Attempts++
			payout.UpdatedAt = s.now()

			_, err := s.ledger.Apply(ctx, repos, payout.DriverID, payout.Amount, domain.CreditDriverPayout, payout.CarpoolID)
			switch {
			case err == nil:
				payout.Status = domain.PayoutStatusPaid
				payout.LastError = ""
				stats.Paid++
			case errors.Is(err, repository.ErrNotFound):
				payout.LastError = ErrUserNotFound.Error()
				if payout.Attempts >= s.maxAttempts {
					payout.Status = domain.PayoutStatusFailed
					stats.Failed++
				} else {
					stats.Queued++
				}
			default:
				return err
			}

			if err := repos.Payouts.Update(ctx, payout); err != nil {
				return fmt.Errorf("update payout: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return RetryStats{}, err
	}

	if stats.Paid+stats.Failed+stats.Queued > 0 {
		s.logger.Info("Payout retry pass finished",
			zap.Int("paid", stats.Paid),
			zap.Int("failed", stats.Failed),
			zap.Int("queued", stats.Queued),
		)
	}

	if stats.Failed > 0 {
		s.logger.Error("Driver payouts abandoned after max attempts", zap.Int("count", stats.Failed))
	}

	return stats, nil
}
