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

// UserService handles accounts and their credit journal.
type UserService struct {
	store         repository.Store
	ledger        *Ledger
	logger        *zap.Logger
	signupCredits int
}

// NewUserService creates a new UserService.
func NewUserService(store repository.Store, ledger *Ledger, logger *zap.Logger, signupCredits int) *UserService {
	return &UserService{
		store:         store,
		ledger:        ledger,
		logger:        logger,
		signupCredits: signupCredits,
	}
}

// RegisterUserRequest contains the parameters for creating an account.
type RegisterUserRequest struct {
	Name  string
	Email string
}

// Register creates an account and grants the signup credits through the ledger.
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return nil, ErrInvalidUserDetails
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return ErrEmailAlreadyRegistered
			}
			return fmt.Errorf("create user: %w", err)
		}

		if s.signupCredits <= 0 {
			return nil
		}

		balance, err := s.ledger.Apply(ctx, repos, user.ID, s.signupCredits, domain.CreditSignupBonus, "")
		if err != nil {
			return err
		}
		user.Credits = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID), zap.Int("credits", user.Credits))

	return user, nil
}

// GetUser retrieves a user with their current balance.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	user, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// ListTransactions returns the user's credit journal, newest first.
func (s *UserService) ListTransactions(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	return s.store.Repos().Transactions.ListByUser(ctx, userID, clampLimit(limit))
}
