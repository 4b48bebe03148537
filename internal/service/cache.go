package service

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// CarpoolCache is a read-through cache for carpool records.
type CarpoolCache interface {
	// GetCarpool returns nil, nil on a miss.
	GetCarpool(ctx context.Context, id string) (*domain.Carpool, error)
	// SetCarpool stores a row read at readStart. It must not store the row
	// when the carpool was invalidated at or after readStart.
	SetCarpool(ctx context.Context, carpool *domain.Carpool, readStart time.Time) error
	InvalidateCarpool(ctx context.Context, id string) error
}
