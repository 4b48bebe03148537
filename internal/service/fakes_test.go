package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"carpool/internal/domain"
	"carpool/internal/repository"
	"carpool/internal/repository/memory"
	"carpool/internal/service"
)

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// sentNotification records one notifier call.
type sentNotification struct {
	Kind        service.NotificationType
	Email       string
	Name        string
	TripSummary string
	CarpoolID   string
}

// MockNotifier is a thread-safe Notifier that records every call.
type MockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification

	// Counters for verification
	CancellationCallCount int32
	CompletionCallCount   int32

	// Error injection
	NotifyError error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyCancellation(ctx context.Context, email, name, tripSummary string) error {
	atomic.AddInt32(&m.CancellationCallCount, 1)
	m.record(sentNotification{
		Kind:        service.NotificationCarpoolCancelled,
		Email:       email,
		Name:        name,
		TripSummary: tripSummary,
	})
	return m.NotifyError
}

func (m *MockNotifier) NotifyCompletion(ctx context.Context, email, name, carpoolID string) error {
	atomic.AddInt32(&m.CompletionCallCount, 1)
	m.record(sentNotification{
		Kind:      service.NotificationCarpoolCompleted,
		Email:     email,
		Name:      name,
		CarpoolID: carpoolID,
	})
	return m.NotifyError
}

func (m *MockNotifier) record(n sentNotification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

// Sent returns a copy of the recorded notifications.
func (m *MockNotifier) Sent() []sentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentNotification, len(m.sent))
	copy(out, m.sent)
	return out
}

// ──────────────────────────────────────────────
// MOCK CARPOOL CACHE
// ──────────────────────────────────────────────

// MockCache is an in-memory CarpoolCache.
type MockCache struct {
	mu          sync.Mutex
	carpools    map[string]domain.Carpool
	invalidated map[string]time.Time

	// Counters for verification
	HitCount            int32
	MissCount           int32
	SetCallCount        int32
	InvalidateCallCount int32

	// Error injection
	GetError error
}

// NewMockCache creates a new mock cache.
func NewMockCache() *MockCache {
	return &MockCache{
		carpools:    make(map[string]domain.Carpool),
		invalidated: make(map[string]time.Time),
	}
}

func (m *MockCache) GetCarpool(ctx context.Context, id string) (*domain.Carpool, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carpools[id]
	if !ok {
		atomic.AddInt32(&m.MissCount, 1)
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	return &c, nil
}

func (m *MockCache) SetCarpool(ctx context.Context, carpool *domain.Carpool, readStart time.Time) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if at, ok := m.invalidated[carpool.ID]; ok && !at.Before(readStart) {
		return nil
	}
	m.carpools[carpool.ID] = *carpool
	return nil
}

func (m *MockCache) InvalidateCarpool(ctx context.Context, id string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carpools, id)
	m.invalidated[id] = time.Now()
	return nil
}

// Contains reports whether the carpool is cached.
func (m *MockCache) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carpools[id]
	return ok
}

// ──────────────────────────────────────────────
// INTERLEAVING STORE
// ──────────────────────────────────────────────

// interleavingStore runs afterRead once, right after the next
// non-transactional carpool read returns.
type interleavingStore struct {
	*memory.Store
	afterRead func()
}

func (s *interleavingStore) Repos() repository.Repositories {
	repos := s.Store.Repos()
	repos.Carpools = &interleavingCarpools{CarpoolRepository: repos.Carpools, store: s}
	return repos
}

type interleavingCarpools struct {
	repository.CarpoolRepository
	store *interleavingStore
}

func (r *interleavingCarpools) GetByID(ctx context.Context, id string) (*domain.Carpool, error) {
	carpool, err := r.CarpoolRepository.GetByID(ctx, id)
	if hook := r.store.afterRead; hook != nil {
		r.store.afterRead = nil
		hook()
	}
	return carpool, err
}

// ──────────────────────────────────────────────
// TEST ENVIRONMENT
// ──────────────────────────────────────────────

const testMaxPayoutAttempts = 3

type testEnv struct {
	store    *memory.Store
	notifier *MockNotifier
	cache    *MockCache
	carpools *service.CarpoolService
	users    *service.UserService
	payouts  *service.PayoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	ledger := service.NewLedger()
	logger := zap.NewNop()
	notifier := NewMockNotifier()
	cache := NewMockCache()

	return &testEnv{
		store:    store,
		notifier: notifier,
		cache:    cache,
		carpools: service.NewCarpoolService(store, ledger, notifier, cache, logger, domain.DefaultPlatformCommission),
		users:    service.NewUserService(store, ledger, logger, domain.DefaultSignupCredits),
		payouts:  service.NewPayoutService(store, ledger, logger, testMaxPayoutAttempts),
	}
}

// addUser stores a user with the given balance, bypassing the signup grant.
func (e *testEnv) addUser(t *testing.T, id string, credits int) {
	t.Helper()
	err := e.store.Repos().Users.Create(context.Background(), &domain.User{
		ID:        id,
		Name:      "Name " + id,
		Email:     id + "@example.com",
		Credits:   credits,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to add user %s: %v", id, err)
	}
}

// addCarpool publishes a Paris → Lyon carpool through the service.
func (e *testEnv) addCarpool(t *testing.T, driverID string, seats, price int) *domain.Carpool {
	t.Helper()
	carpool, err := e.carpools.CreateCarpool(context.Background(), service.CreateCarpoolRequest{
		DriverID:       driverID,
		DepartureCity:  "Paris",
		ArrivalCity:    "Lyon",
		DepartureDate:  "2026-11-02",
		DepartureTime:  "08:00",
		TotalSeats:     seats,
		PricePerPerson: price,
	})
	if err != nil {
		t.Fatalf("failed to create carpool: %v", err)
	}
	return carpool
}

func (e *testEnv) balance(t *testing.T, userID string) int {
	t.Helper()
	user, err := e.store.Repos().Users.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to get user %s: %v", userID, err)
	}
	return user.Credits
}

func (e *testEnv) carpool(t *testing.T, carpoolID string) *domain.Carpool {
	t.Helper()
	carpool, err := e.store.Repos().Carpools.GetByID(context.Background(), carpoolID)
	if err != nil {
		t.Fatalf("failed to get carpool %s: %v", carpoolID, err)
	}
	return carpool
}

// seatHolders counts participations that occupy a seat.
func (e *testEnv) seatHolders(t *testing.T, carpoolID string) int {
	t.Helper()
	participations, err := e.store.Repos().Participations.ListByCarpool(context.Background(), carpoolID)
	if err != nil {
		t.Fatalf("failed to list participations: %v", err)
	}
	n := 0
	for _, p := range participations {
		if p.Status.HoldsSeat() {
			n++
		}
	}
	return n
}

func (e *testEnv) participation(t *testing.T, carpoolID, userID string) *domain.Participation {
	t.Helper()
	p, err := e.store.Repos().Participations.GetActive(context.Background(), carpoolID, userID)
	if err != nil {
		t.Fatalf("failed to get participation of %s: %v", userID, err)
	}
	return p
}

func (e *testEnv) mustJoin(t *testing.T, carpoolID, userID string) {
	t.Helper()
	if _, err := e.carpools.Join(context.Background(), carpoolID, userID); err != nil {
		t.Fatalf("join by %s failed: %v", userID, err)
	}
}

func (e *testEnv) mustStart(t *testing.T, carpoolID, driverID string) {
	t.Helper()
	if _, err := e.carpools.StartCarpool(context.Background(), carpoolID, driverID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func (e *testEnv) mustComplete(t *testing.T, carpoolID, driverID string) {
	t.Helper()
	if _, err := e.carpools.CompleteCarpool(context.Background(), carpoolID, driverID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	e.carpools.WaitNotifications()
}

func (e *testEnv) checkSeatInvariant(t *testing.T, carpoolID string) {
	t.Helper()
	carpool := e.carpool(t, carpoolID)
	if got := carpool.AvailableSeats + e.seatHolders(t, carpoolID); got != carpool.TotalSeats {
		t.Errorf("available seats %d + seat holders = %d, want total seats %d",
			carpool.AvailableSeats, got, carpool.TotalSeats)
	}
}
