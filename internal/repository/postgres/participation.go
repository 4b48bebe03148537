package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// ParticipationRepository is a PostgreSQL implementation of repository.ParticipationRepository.
type ParticipationRepository struct {
	q Querier
}

const participationColumns = `
	id, carpool_id, user_id, status, credits_used, trip_validated, problem_comment,
	created_at, validated_at
`

// Create persists a new participation.
func (r *ParticipationRepository) Create(ctx context.Context, p *domain.Participation) error {
	query := `
		INSERT INTO participations (` + participationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		p.ID,
		p.CarpoolID,
		p.UserID,
		p.Status,
		p.CreditsUsed,
		nullBool(p.TripValidated),
		nullString(p.ProblemComment),
		p.CreatedAt,
		nullTime(p.ValidatedAt),
	)
	if err != nil {
		if pqCode(err) == uniqueViolation {
			return repository.ErrDuplicateParticipation
		}
		return err
	}

	return nil
}

// GetActive retrieves the non-cancelled participation of a user on a carpool
// and locks its row.
func (r *ParticipationRepository) GetActive(ctx context.Context, carpoolID, userID string) (*domain.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE carpool_id = $1 AND user_id = $2 AND status <> $3
		FOR UPDATE
	`

	p, err := scanParticipation(r.q.QueryRowContext(ctx, query, carpoolID, userID, domain.ParticipationStatusCancelled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return p, nil
}

// Update updates an existing participation.
func (r *ParticipationRepository) Update(ctx context.Context, p *domain.Participation) error {
	query := `
		UPDATE participations
		SET status = $1, credits_used = $2, trip_validated = $3, problem_comment = $4, validated_at = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		p.Status,
		p.CreditsUsed,
		nullBool(p.TripValidated),
		nullString(p.ProblemComment),
		nullTime(p.ValidatedAt),
		p.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, repository.ErrNotFound)
}

// ListByCarpool retrieves all participations of a carpool, oldest first.
func (r *ParticipationRepository) ListByCarpool(ctx context.Context, carpoolID string) ([]*domain.Participation, error) {
	query := `
		SELECT ` + participationColumns + `
		FROM participations WHERE carpool_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, carpoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participations []*domain.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		participations = append(participations, p)
	}

	return participations, rows.Err()
}

func scanParticipation(row rowScanner) (*domain.Participation, error) {
	var p domain.Participation
	var validated sql.NullBool
	var comment sql.NullString
	var validatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.CarpoolID,
		&p.UserID,
		&p.Status,
		&p.CreditsUsed,
		&validated,
		&comment,
		&p.CreatedAt,
		&validatedAt,
	)
	if err != nil {
		return nil, err
	}

	if validated.Valid {
		ok := validated.Bool
		p.TripValidated = &ok
	}
	p.ProblemComment = comment.String
	if validatedAt.Valid {
		p.ValidatedAt = validatedAt.Time
	}

	return &p, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// Ensure ParticipationRepository implements repository.ParticipationRepository.
var _ repository.ParticipationRepository = (*ParticipationRepository)(nil)
