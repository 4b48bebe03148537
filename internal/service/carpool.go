package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Result is the outcome of a successful lifecycle operation.
type Result struct {
	Message string

	// RemainingCredits is the passenger's balance after a join. Nil for other operations.
	RemainingCredits *int
}

// CarpoolService runs the carpool lifecycle: join, cancel, start, complete and
// trip validation. Every mutation and the credit movements it implies commit
// in one transaction. Notifications go out after the commit.
type CarpoolService struct {
	store      repository.Store
	ledger     *Ledger
	cache      CarpoolCache
	logger     *zap.Logger
	commission int
	notices    *dispatcher
	now        func() time.Time
}

// NewCarpoolService creates a new CarpoolService. cache may be nil.
func NewCarpoolService(
	store repository.Store,
	ledger *Ledger,
	notifier Notifier,
	cache CarpoolCache,
	logger *zap.Logger,
	commission int,
) *CarpoolService {
	return &CarpoolService{
		store:      store,
		ledger:     ledger,
		cache:      cache,
		logger:     logger,
		commission: commission,
		notices:    &dispatcher{notifier: notifier, logger: logger},
		now:        time.Now,
	}
}

// WaitNotifications blocks until every dispatched notification has been attempted.
func (s *CarpoolService) WaitNotifications() {
	s.notices.wait()
}

// CreateCarpoolRequest contains the parameters for publishing a carpool.
type CreateCarpoolRequest struct {
	DriverID          string
	DepartureCity     string
	ArrivalCity       string
	DepartureLocation string
	ArrivalLocation   string
	DepartureDate     string
	DepartureTime     string
	ArrivalDate       string
	ArrivalTime       string
	EstimatedDuration *int
	TotalSeats        int
	PricePerPerson    int
}

// CreateCarpool publishes a new carpool in PENDING state with every seat available.
func (s *CarpoolService) CreateCarpool(ctx context.Context, req CreateCarpoolRequest) (*domain.Carpool, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidUserID
	}

	if strings.TrimSpace(req.DepartureCity) == "" || strings.TrimSpace(req.ArrivalCity) == "" {
		return nil, ErrMissingCities
	}

	if req.TotalSeats < domain.MinSeats || req.TotalSeats > domain.MaxSeats {
		return nil, ErrInvalidSeats
	}

	if req.PricePerPerson < s.commission {
		return nil, ErrInvalidPrice
	}

	if req.EstimatedDuration != nil && *req.EstimatedDuration < 0 {
		return nil, ErrInvalidDuration
	}

	now := s.now()
	carpool := &domain.Carpool{
		ID:                uuid.New().String(),
		DriverID:          req.DriverID,
		DepartureCity:     strings.TrimSpace(req.DepartureCity),
		ArrivalCity:       strings.TrimSpace(req.ArrivalCity),
		DepartureLocation: req.DepartureLocation,
		ArrivalLocation:   req.ArrivalLocation,
		DepartureDate:     req.DepartureDate,
		DepartureTime:     req.DepartureTime,
		ArrivalDate:       req.ArrivalDate,
		ArrivalTime:       req.ArrivalTime,
		EstimatedDuration: req.EstimatedDuration,
		TotalSeats:        req.TotalSeats,
		AvailableSeats:    req.TotalSeats,
		PricePerPerson:    req.PricePerPerson,
		Status:            domain.CarpoolStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Users.GetByID(ctx, req.DriverID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get driver: %w", err)
		}

		if err := repos.Carpools.Create(ctx, carpool); err != nil {
			return fmt.Errorf("create carpool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Carpool created",
		zap.String("carpool_id", carpool.ID),
		zap.String("driver_id", carpool.DriverID),
		zap.Int("seats", carpool.TotalSeats),
		zap.Int("price", carpool.PricePerPerson),
	)

	return carpool, nil
}

// GetCarpool retrieves a carpool, from the cache when possible.
func (s *CarpoolService) GetCarpool(ctx context.Context, carpoolID string) (*domain.Carpool, error) {
	if carpoolID == "" {
		return nil, ErrInvalidCarpoolID
	}

	if s.cache != nil {
		cached, err := s.cache.GetCarpool(ctx, carpoolID)
		if err != nil {
			s.logger.Warn("Carpool cache read failed", zap.String("carpool_id", carpoolID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	readStart := s.now()
	carpool, err := s.store.Repos().Carpools.GetByID(ctx, carpoolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarpoolNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCarpool(ctx, carpool, readStart); err != nil {
			s.logger.Warn("Carpool cache write failed", zap.String("carpool_id", carpoolID), zap.Error(err))
		}
	}

	return carpool, nil
}

// ListOpenCarpools lists carpools still accepting passengers, newest first.
func (s *CarpoolService) ListOpenCarpools(ctx context.Context, limit int) ([]*domain.Carpool, error) {
	return s.store.Repos().Carpools.ListByStatus(ctx, domain.CarpoolStatusPending, clampLimit(limit))
}

// ListParticipations lists every participation of a carpool. Only its driver may see them.
func (s *CarpoolService) ListParticipations(ctx context.Context, carpoolID, userID string) ([]*domain.Participation, error) {
	if carpoolID == "" {
		return nil, ErrInvalidCarpoolID
	}

	if userID == "" {
		return nil, ErrInvalidUserID
	}

	repos := s.store.Repos()

	carpool, err := repos.Carpools.GetByID(ctx, carpoolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarpoolNotFound
		}
		return nil, err
	}

	if carpool.DriverID != userID {
		return nil, ErrNotDriver
	}

	return repos.Participations.ListByCarpool(ctx, carpoolID)
}

// Join reserves a seat for the user and debits the seat price from their balance.
func (s *CarpoolService) Join(ctx context.Context, carpoolID, userID string) (*Result, error) {
	if err := validateIDs(carpoolID, userID); err != nil {
		return nil, err
	}

	var balance int
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		carpool, err := lockCarpool(ctx, repos, carpoolID)
		if err != nil {
			return err
		}

		if carpool.AvailableSeats <= 0 {
			return ErrNoSeatsAvailable
		}

		if carpool.Status != domain.CarpoolStatusPending {
			return ErrCarpoolNotOpen
		}

		if carpool.DriverID == userID {
			return ErrCannotJoinOwnCarpool
		}

		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInsufficientCredits
			}
			return fmt.Errorf("get user: %w", err)
		}

		if user.Credits < carpool.PricePerPerson {
			return ErrInsufficientCredits
		}

		if _, err := repos.Participations.GetActive(ctx, carpoolID, userID); err == nil {
			return ErrAlreadyParticipating
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get participation: %w", err)
		}

		participation := &domain.Participation{
			ID:          uuid.New().String(),
			CarpoolID:   carpoolID,
			UserID:      userID,
			Status:      domain.ParticipationStatusConfirmed,
			CreditsUsed: carpool.PricePerPerson,
			CreatedAt:   s.now(),
		}
		if err := repos.Participations.Create(ctx, participation); err != nil {
			if errors.Is(err, repository.ErrDuplicateParticipation) {
				return ErrAlreadyParticipating
			}
			return fmt.Errorf("create participation: %w", err)
		}

		balance, err = s.ledger.Apply(ctx, repos, userID, -carpool.PricePerPerson, domain.CreditJoinDebit, carpoolID)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientCredits) || errors.Is(err, repository.ErrNotFound) {
				return ErrInsufficientCredits
			}
			return err
		}

		carpool.AvailableSeats--
		carpool.UpdatedAt = s.now()
		if err := repos.Carpools.Update(ctx, carpool); err != nil {
			return fmt.Errorf("update carpool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, carpoolID)

	s.logger.Info("Participation confirmed",
		zap.String("carpool_id", carpoolID),
		zap.String("user_id", userID),
		zap.Int("remaining_credits", balance),
	)

	return &Result{Message: "Participation confirmed", RemainingCredits: &balance}, nil
}

// CancelParticipation cancels the user's seat, refunds it and releases it.
// A seat can be given back while the carpool is pending, or when the carpool
// record no longer exists; in that case only the refund happens.
func (s *CarpoolService) CancelParticipation(ctx context.Context, carpoolID, userID string) (*Result, error) {
	if err := validateIDs(carpoolID, userID); err != nil {
		return nil, err
	}

	var refunded int
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		carpool, err := repos.Carpools.GetByIDForUpdate(ctx, carpoolID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get carpool: %w", err)
		}

		participation, err := getActiveParticipation(ctx, repos, carpoolID, userID)
		if err != nil {
			return err
		}

		if participation.Status != domain.ParticipationStatusConfirmed {
			return ErrParticipationLocked
		}

		if carpool != nil && carpool.Status != domain.CarpoolStatusPending {
			return ErrParticipationLocked
		}

		participation.Status = domain.ParticipationStatusCancelled
		if err := repos.Participations.Update(ctx, participation); err != nil {
			return fmt.Errorf("update participation: %w", err)
		}

		if ok, err := s.refund(ctx, repos, participation, domain.CreditParticipationRefund); err != nil {
			return err
		} else if ok {
			refunded = participation.CreditsUsed
		}

		if carpool == nil {
			s.logger.Warn("Carpool record missing, seat not released",
				zap.String("carpool_id", carpoolID),
				zap.String("participation_id", participation.ID),
			)
			return nil
		}

		if carpool.AvailableSeats < carpool.TotalSeats {
			carpool.AvailableSeats++
		}
		carpool.UpdatedAt = s.now()
		if err := repos.Carpools.Update(ctx, carpool); err != nil {
			return fmt.Errorf("update carpool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, carpoolID)

	s.logger.Info("Participation cancelled",
		zap.String("carpool_id", carpoolID),
		zap.String("user_id", userID),
		zap.Int("refunded", refunded),
	)

	return &Result{Message: "Participation cancelled"}, nil
}

// CancelCarpool cancels a pending carpool on behalf of its driver, refunds
// every confirmed passenger and notifies them.
func (s *CarpoolService) CancelCarpool(ctx context.Context, carpoolID, userID string) (*Result, error) {
	if err := validateIDs(carpoolID, userID); err != nil {
		return nil, err
	}

	var (
		refunded int
		pending  []notice
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		carpool, err := lockDriverCarpool(ctx, repos, carpoolID, userID)
		if err != nil {
			return err
		}

		if carpool.Status != domain.CarpoolStatusPending {
			return ErrCarpoolCannotBeCancelled
		}

		carpool.Status = domain.CarpoolStatusCancelled
		carpool.UpdatedAt = s.now()
		if err := repos.Carpools.Update(ctx, carpool); err != nil {
			return fmt.Errorf("update carpool: %w", err)
		}

		participations, err := repos.Participations.ListByCarpool(ctx, carpoolID)
		if err != nil {
			return fmt.Errorf("list participations: %w", err)
		}

		summary := carpool.Summary()
		for _, p := range participations {
			if p.Status != domain.ParticipationStatusConfirmed {
				continue
			}

			p.Status = domain.ParticipationStatusCancelled
			if err := repos.Participations.Update(ctx, p); err != nil {
				return fmt.Errorf("update participation: %w", err)
			}

			passenger, err := repos.Users.GetByID(ctx, p.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					s.logger.Warn("Passenger record missing, refund skipped",
						zap.String("carpool_id", carpoolID),
						zap.String("user_id", p.UserID),
						zap.Int("credits", p.CreditsUsed),
					)
					continue
				}
				return fmt.Errorf("get passenger: %w", err)
			}

			if ok, err := s.refund(ctx, repos, p, domain.CreditCarpoolCancelRefund); err != nil {
				return err
			} else if ok {
				refunded++
			}

			pending = append(pending, notice{
				kind:        NotificationCarpoolCancelled,
				email:       passenger.Email,
				name:        passenger.Name,
				tripSummary: summary,
				carpoolID:   carpoolID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, carpoolID)
	s.notices.dispatch(ctx, pending)

	s.logger.Info("Carpool cancelled",
		zap.String("carpool_id", carpoolID),
		zap.Int("refunded_passengers", refunded),
	)

	return &Result{Message: fmt.Sprintf("Carpool cancelled, %d passenger(s) refunded", refunded)}, nil
}

// StartCarpool moves a pending carpool to IN_PROGRESS.
func (s *CarpoolService) StartCarpool(ctx context.Context, carpoolID, userID string) (*Result, error) {
	if err := validateIDs(carpoolID, userID); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		carpool, err := lockDriverCarpool(ctx, repos, carpoolID, userID)
		if err != nil {
			return err
		}

		if carpool.Status != domain.CarpoolStatusPending {
			return ErrCarpoolCannotBeStarted
		}

		carpool.Status = domain.CarpoolStatusInProgress
		carpool.UpdatedAt = s.now()
		if err := repos.Carpools.Update(ctx, carpool); err != nil {
			return fmt.Errorf("update carpool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, carpoolID)
	s.logger.Info("Carpool started", zap.String("carpool_id", carpoolID))

	return &Result{Message: "Carpool started"}, nil
}

// CompleteCarpool moves an in-progress carpool to COMPLETED and asks each
// confirmed passenger to validate the trip.
func (s *CarpoolService) CompleteCarpool(ctx context.Context, carpoolID, userID string) (*Result, error) {
	if err := validateIDs(carpoolID, userID); err != nil {
		return nil, err
	}

	var pending []notice
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		carpool, err := lockDriverCarpool(ctx, repos, carpoolID, userID)
		if err != nil {
			return err
		}

		if carpool.Status != domain.CarpoolStatusInProgress {
			return ErrCarpoolNotInProgress
		}

		carpool.Status = domain.CarpoolStatusCompleted
		carpool.UpdatedAt = s.now()
		if err := repos.Carpools.Update(ctx, carpool); err != nil {
			return fmt.Errorf("update carpool: %w", err)
		}

		participations, err := repos.Participations.ListByCarpool(ctx, carpoolID)
		if err != nil {
			return fmt.Errorf("list participations: %w", err)
		}

		for _, p := range participations {
			if p.Status != domain.ParticipationStatusConfirmed {
				continue
			}

			passenger, err := repos.Users.GetByID(ctx, p.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					s.logger.Warn("Passenger record missing, not notified",
						zap.String("carpool_id", carpoolID),
						zap.String("user_id", p.UserID),
					)
					continue
				}
				return fmt.Errorf("get passenger: %w", err)
			}

			pending = append(pending, notice{
				kind:      NotificationCarpoolCompleted,
				email:     passenger.Email,
				name:      passenger.Name,
				carpoolID: carpoolID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, carpoolID)
	s.notices.dispatch(ctx, pending)

	s.logger.Info("Carpool completed",
		zap.String("carpool_id", carpoolID),
		zap.Int("notified_passengers", len(pending)),
	)

	return &Result{Message: "Carpool completed"}, nil
}

// ValidateTripRequest contains the passenger's judgement of a completed trip.
type ValidateTripRequest struct {
	CarpoolID      string
	UserID         string
	TripOK         bool
	ProblemComment string
}

// ValidateTrip records the passenger's judgement of the trip. A positive
// judgement marks the participation VALIDATED and pays the driver the seat
// price minus the platform commission in the same transaction. When the
// driver record cannot be credited the payout is queued for retry.
func (s *CarpoolService) ValidateTrip(ctx context.Context, req ValidateTripRequest) (*Result, error) {
	if err := validateIDs(req.CarpoolID, req.UserID); err != nil {
		return nil, err
	}

	var payout *domain.Payout
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		carpool, err := repos.Carpools.GetByIDForUpdate(ctx, req.CarpoolID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get carpool: %w", err)
		}

		participation, err := getActiveParticipation(ctx, repos, req.CarpoolID, req.UserID)
		if err != nil {
			return err
		}

		if participation.IsJudged() {
			return ErrTripAlreadyJudged
		}

		if carpool == nil {
			return ErrCarpoolNotFound
		}

		if carpool.Status != domain.CarpoolStatusCompleted {
			return ErrCarpoolNotCompleted
		}

		now := s.now()
		validated := req.TripOK
		participation.TripValidated = &validated
		participation.ValidatedAt = now

		if !req.TripOK {
			participation.ProblemComment = strings.TrimSpace(req.ProblemComment)
			if err := repos.Participations.Update(ctx, participation); err != nil {
				return fmt.Errorf("update participation: %w", err)
			}
			return nil
		}

		participation.Status = domain.ParticipationStatusValidated
		if err := repos.Participations.Update(ctx, participation); err != nil {
			return fmt.Errorf("update participation: %w", err)
		}

		payout = &domain.Payout{
			ID:              uuid.New().String(),
			ParticipationID: participation.ID,
			CarpoolID:       carpool.ID,
			DriverID:        carpool.DriverID,
			Amount:          carpool.DriverPayout(s.commission),
			Status:          domain.PayoutStatusPaid,
			Attempts:        1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if payout.Amount > 0 {
			_, err := s.ledger.Apply(ctx, repos, carpool.DriverID, payout.Amount, domain.CreditDriverPayout, carpool.ID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					return err
				}
				payout.Status = domain.PayoutStatusPending
				payout.LastError = ErrUserNotFound.Error()
			}
		}

		if err := repos.Payouts.Create(ctx, payout); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !req.TripOK {
		s.logger.Info("Problem reported",
			zap.String("carpool_id", req.CarpoolID),
			zap.String("user_id", req.UserID),
		)
		return &Result{Message: "Problem reported"}, nil
	}

	if payout.Status == domain.PayoutStatusPending {
		s.logger.Warn("Driver payout queued for retry",
			zap.String("payout_id", payout.ID),
			zap.String("driver_id", payout.DriverID),
			zap.Int("amount", payout.Amount),
		)
	}

	s.logger.Info("Trip validated",
		zap.String("carpool_id", req.CarpoolID),
		zap.String("user_id", req.UserID),
		zap.String("payout_status", string(payout.Status)),
	)

	return &Result{Message: "Trip validated"}, nil
}

// refund credits the participation's price back to its passenger. It returns
// false when the passenger record no longer exists.
func (s *CarpoolService) refund(
	ctx context.Context,
	repos repository.Repositories,
	p *domain.Participation,
	kind domain.CreditTransactionType,
) (bool, error) {
	if p.CreditsUsed == 0 {
		return true, nil
	}

	_, err := s.ledger.Apply(ctx, repos, p.UserID, p.CreditsUsed, kind, p.CarpoolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Passenger record missing, refund skipped",
				zap.String("carpool_id", p.CarpoolID),
				zap.String("user_id", p.UserID),
				zap.Int("credits", p.CreditsUsed),
			)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *CarpoolService) invalidate(ctx context.Context, carpoolID string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.InvalidateCarpool(ctx, carpoolID); err != nil {
		s.logger.Warn("Carpool cache invalidation failed", zap.String("carpool_id", carpoolID), zap.Error(err))
	}
}

func validateIDs(carpoolID, userID string) error {
	if carpoolID == "" {
		return ErrInvalidCarpoolID
	}

	if userID == "" {
		return ErrInvalidUserID
	}

	return nil
}

func lockCarpool(ctx context.Context, repos repository.Repositories, carpoolID string) (*domain.Carpool, error) {
	carpool, err := repos.Carpools.GetByIDForUpdate(ctx, carpoolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarpoolNotFound
		}
		return nil, fmt.Errorf("get carpool: %w", err)
	}
	return carpool, nil
}

// lockDriverCarpool locks the carpool and checks that userID drives it.
func lockDriverCarpool(ctx context.Context, repos repository.Repositories, carpoolID, userID string) (*domain.Carpool, error) {
	carpool, err := lockCarpool(ctx, repos, carpoolID)
	if err != nil {
		return nil, err
	}

	if carpool.DriverID != userID {
		return nil, ErrNotDriver
	}

	return carpool, nil
}

func getActiveParticipation(ctx context.Context, repos repository.Repositories, carpoolID, userID string) (*domain.Participation, error) {
	participation, err := repos.Participations.GetActive(ctx, carpoolID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("get participation: %w", err)
	}
	return participation, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
