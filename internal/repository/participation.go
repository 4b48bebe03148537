package repository

import (
	"context"

	"carpool/internal/domain"
)

// ParticipationRepository defines the persistence operations for participations.
type ParticipationRepository interface {
	// Create persists a new participation.
	// Returns ErrDuplicateParticipation if the user already has a
	// non-cancelled participation on the carpool.
	Create(ctx context.Context, participation *domain.Participation) error

	// GetActive retrieves the non-cancelled participation of a user on a
	// carpool and locks it until the enclosing transaction ends.
	GetActive(ctx context.Context, carpoolID, userID string) (*domain.Participation, error)

	// Update updates an existing participation.
	Update(ctx context.Context, participation *domain.Participation) error

	// ListByCarpool retrieves all participations of a carpool, oldest first.
	ListByCarpool(ctx context.Context, carpoolID string) ([]*domain.Participation, error)
}
