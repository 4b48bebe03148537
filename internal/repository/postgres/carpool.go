package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// CarpoolRepository is a PostgreSQL implementation of repository.CarpoolRepository.
type CarpoolRepository struct {
	q Querier
}

const carpoolColumns = `
	id, driver_id, departure_city, arrival_city, departure_location, arrival_location,
	departure_date, departure_time, arrival_date, arrival_time, estimated_duration,
	total_seats, available_seats, price_per_person, status, created_at, updated_at
`

// Create persists a new carpool.
func (r *CarpoolRepository) Create(ctx context.Context, carpool *domain.Carpool) error {
	query := `
		INSERT INTO carpools (` + carpoolColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.q.ExecContext(ctx, query,
		carpool.ID,
		carpool.DriverID,
		carpool.DepartureCity,
		carpool.ArrivalCity,
		carpool.DepartureLocation,
		carpool.ArrivalLocation,
		carpool.DepartureDate,
		carpool.DepartureTime,
		carpool.ArrivalDate,
		carpool.ArrivalTime,
		nullDuration(carpool.EstimatedDuration),
		carpool.TotalSeats,
		carpool.AvailableSeats,
		carpool.PricePerPerson,
		carpool.Status,
		carpool.CreatedAt,
		carpool.UpdatedAt,
	)

	return err
}

// GetByID retrieves a carpool by ID.
func (r *CarpoolRepository) GetByID(ctx context.Context, id string) (*domain.Carpool, error) {
	query := `SELECT ` + carpoolColumns + ` FROM carpools WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByIDForUpdate retrieves a carpool and locks its row.
func (r *CarpoolRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Carpool, error) {
	query := `SELECT ` + carpoolColumns + ` FROM carpools WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *CarpoolRepository) get(ctx context.Context, query, id string) (*domain.Carpool, error) {
	carpool, err := scanCarpool(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return carpool, nil
}

// ListByStatus retrieves carpools in the given status, newest first.
func (r *CarpoolRepository) ListByStatus(ctx context.Context, status domain.CarpoolStatus, limit int) ([]*domain.Carpool, error) {
	query := `
		SELECT ` + carpoolColumns + `
		FROM carpools WHERE status = $1
		ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var carpools []*domain.Carpool
	for rows.Next() {
		carpool, err := scanCarpool(rows)
		if err != nil {
			return nil, err
		}
		carpools = append(carpools, carpool)
	}

	return carpools, rows.Err()
}

// Update updates an existing carpool.
func (r *CarpoolRepository) Update(ctx context.Context, carpool *domain.Carpool) error {
	query := `
		UPDATE carpools
		SET departure_city = $1, arrival_city = $2, departure_location = $3, arrival_location = $4,
		    departure_date = $5, departure_time = $6, arrival_date = $7, arrival_time = $8,
		    estimated_duration = $9, total_seats = $10, available_seats = $11,
		    price_per_person = $12, status = $13, updated_at = $14
		WHERE id = $15
	`

	result, err := r.q.ExecContext(ctx, query,
		carpool.DepartureCity,
		carpool.ArrivalCity,
		carpool.DepartureLocation,
		carpool.ArrivalLocation,
		carpool.DepartureDate,
		carpool.DepartureTime,
		carpool.ArrivalDate,
		carpool.ArrivalTime,
		nullDuration(carpool.EstimatedDuration),
		carpool.TotalSeats,
		carpool.AvailableSeats,
		carpool.PricePerPerson,
		carpool.Status,
		carpool.UpdatedAt,
		carpool.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, repository.ErrNotFound)
}

func scanCarpool(row rowScanner) (*domain.Carpool, error) {
	var carpool domain.Carpool
	var duration sql.NullInt64

	err := row.Scan(
		&carpool.ID,
		&carpool.DriverID,
		&carpool.DepartureCity,
		&carpool.ArrivalCity,
		&carpool.DepartureLocation,
		&carpool.ArrivalLocation,
		&carpool.DepartureDate,
		&carpool.DepartureTime,
		&carpool.ArrivalDate,
		&carpool.ArrivalTime,
		&duration,
		&carpool.TotalSeats,
		&carpool.AvailableSeats,
		&carpool.PricePerPerson,
		&carpool.Status,
		&carpool.CreatedAt,
		&carpool.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if !carpool.Status.Valid() {
		return nil, fmt.Errorf("carpool %s: unknown status %q", carpool.ID, carpool.Status)
	}

	if duration.Valid {
		minutes := int(duration.Int64)
		carpool.EstimatedDuration = &minutes
	}

	return &carpool, nil
}

func nullDuration(minutes *int) sql.NullInt64 {
	if minutes == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*minutes), Valid: true}
}

// Ensure CarpoolRepository implements repository.CarpoolRepository.
var _ repository.CarpoolRepository = (*CarpoolRepository)(nil)
