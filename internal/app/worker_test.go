package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"carpool/internal/app"
	"carpool/internal/service"
)

type countingRetrier struct {
	calls int32
	err   error
}

func (r *countingRetrier) RetryPending(ctx context.Context) (service.RetryStats, error) {
	atomic.AddInt32(&r.calls, 1)
	return service.RetryStats{}, r.err
}

type fakeLocker struct {
	mu         sync.Mutex
	held       bool
	acquireErr error
	releases   int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.releases++
	return nil
}

func TestPayoutWorker_RunOnceWithoutLocker(t *testing.T) {
	retrier := &countingRetrier{}
	worker := app.NewPayoutWorker(retrier, nil, time.Minute, zap.NewNop())

	worker.RunOnce(context.Background())

	if retrier.calls != 1 {
		t.Errorf("expected 1 retry pass, got %d", retrier.calls)
	}
}

func TestPayoutWorker_SkipsPassWhenLockHeldElsewhere(t *testing.T) {
	retrier := &countingRetrier{}
	locker := &fakeLocker{held: true}
	worker := app.NewPayoutWorker(retrier, locker, time.Minute, zap.NewNop())

	worker.RunOnce(context.Background())

	if retrier.calls != 0 {
		t.Errorf("expected no retry pass, got %d", retrier.calls)
	}
}

func TestPayoutWorker_ReleasesLockAfterPass(t *testing.T) {
	retrier := &countingRetrier{err: errors.New("database unavailable")}
	locker := &fakeLocker{}
	worker := app.NewPayoutWorker(retrier, locker, time.Minute, zap.NewNop())

	worker.RunOnce(context.Background())
	worker.RunOnce(context.Background())

	if retrier.calls != 2 {
		t.Errorf("expected 2 retry passes, got %d", retrier.calls)
	}
	if locker.releases != 2 || locker.held {
		t.Errorf("expected lock released after each pass, releases=%d held=%v", locker.releases, locker.held)
	}
}

func TestPayoutWorker_LockErrorSkipsPass(t *testing.T) {
	retrier := &countingRetrier{}
	locker := &fakeLocker{acquireErr: errors.New("redis down")}
	worker := app.NewPayoutWorker(retrier, locker, time.Minute, zap.NewNop())

	worker.RunOnce(context.Background())

	if retrier.calls != 0 {
		t.Errorf("expected no retry pass, got %d", retrier.calls)
	}
}

func TestPayoutWorker_TicksUntilStopped(t *testing.T) {
	retrier := &countingRetrier{}
	worker := app.NewPayoutWorker(retrier, nil, 10*time.Millisecond, zap.NewNop())

	worker.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&retrier.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	worker.Stop()
	worker.Stop()

	if atomic.LoadInt32(&retrier.calls) == 0 {
		t.Error("expected at least one retry pass before stop")
	}
}
