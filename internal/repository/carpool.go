package repository

import (
	"context"

	"carpool/internal/domain"
)

// CarpoolRepository defines the persistence operations for carpools.
type CarpoolRepository interface {
	// Create persists a new carpool.
	Create(ctx context.Context, carpool *domain.Carpool) error

	// GetByID retrieves a carpool by ID.
	GetByID(ctx context.Context, id string) (*domain.Carpool, error)

	// GetByIDForUpdate retrieves a carpool and locks its row until the
	// enclosing transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Carpool, error)

	// ListByStatus retrieves carpools in the given status, newest first.
	ListByStatus(ctx context.Context, status domain.CarpoolStatus, limit int) ([]*domain.Carpool, error)

	// Update updates an existing carpool.
	Update(ctx context.Context, carpool *domain.Carpool) error
}
