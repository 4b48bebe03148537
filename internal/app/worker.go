package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"carpool/internal/service"
)

const payoutLockName = "payout-retry"

// PayoutRetrier runs one pass over pending payouts.
type PayoutRetrier interface {
	RetryPending(ctx context.Context) (service.RetryStats, error)
}

// Locker guards a pass so that only one instance runs it at a time.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// PayoutWorker periodically retries driver payouts left PENDING at validation.
type PayoutWorker struct {
	payouts  PayoutRetrier
	locker   Locker
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPayoutWorker creates a new PayoutWorker. locker may be nil for a single instance.
func NewPayoutWorker(payouts PayoutRetrier, locker Locker, interval time.Duration, logger *zap.Logger) *PayoutWorker {
	return &PayoutWorker{
		payouts:  payouts,
		locker:   locker,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker loop.
func (w *PayoutWorker) Start(ctx context.Context) {
	w.logger.Info("Starting payout retry worker", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for the current pass to finish.
func (w *PayoutWorker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping payout retry worker")
		close(w.stopChan)
	})
	<-w.done
}

func (w *PayoutWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopChan:
			w.logger.Info("Payout retry worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Payout retry worker cancelled")
			return
		}
	}
}

// RunOnce performs one retry pass if the lock can be taken.
func (w *PayoutWorker) RunOnce(ctx context.Context) {
	if w.locker != nil {
		acquired, err := w.locker.AcquireLock(ctx, payoutLockName, w.interval)
		if err != nil {
			w.logger.Warn("Payout lock unavailable", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), payoutLockName); err != nil {
				w.logger.Warn("Payout lock release failed", zap.Error(err))
			}
		}()
	}

	if _, err := w.payouts.RetryPending(ctx); err != nil {
		w.logger.Error("Payout retry pass failed", zap.Error(err))
	}
}
