package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// UserRepository is a PostgreSQL implementation of repository.UserRepository.
type UserRepository struct {
	q Querier
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (id, name, email, credits, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.Credits, user.CreatedAt)
	if err != nil {
		if pqCode(err) == uniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, name, email, credits, created_at FROM users WHERE id = $1`
	row := r.q.QueryRowContext(ctx, query, id)

	var user domain.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Credits, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AdjustBalance atomically adds delta to the user's credits.
// The increment happens in the UPDATE itself so concurrent adjustments on the
// same user never lose updates.
func (r *UserRepository) AdjustBalance(ctx context.Context, id string, delta int) (int, error) {
	query := `
		UPDATE users SET credits = credits + $1
		WHERE id = $2 AND credits + $1 >= 0
		RETURNING credits
	`

	var balance int
	err := r.q.QueryRowContext(ctx, query, delta, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if pqCode(err) == checkViolation {
		return 0, repository.ErrInsufficientCredits
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// No row updated: either the user is missing or the guard rejected the debit.
	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, repository.ErrNotFound
	}
	return 0, repository.ErrInsufficientCredits
}

// Ensure UserRepository implements repository.UserRepository.
var _ repository.UserRepository = (*UserRepository)(nil)
