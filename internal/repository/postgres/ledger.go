package postgres

import (
	"context"
	"database/sql"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// CreditTransactionRepository is a PostgreSQL implementation of repository.CreditTransactionRepository.
type CreditTransactionRepository struct {
	q Querier
}

// Create appends a journal row.
func (r *CreditTransactionRepository) Create(ctx context.Context, tx *domain.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (id, user_id, amount, type, carpool_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query, tx.ID, tx.UserID, tx.Amount, tx.Type, nullString(tx.CarpoolID), tx.CreatedAt)
	return err
}

// ListByUser retrieves a user's journal, newest first.
func (r *CreditTransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, carpool_id, created_at
		FROM credit_transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		var carpoolID sql.NullString
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &carpoolID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.CarpoolID = carpoolID.String
		txs = append(txs, &tx)
	}

	return txs, rows.Err()
}

// PayoutRepository is a PostgreSQL implementation of repository.PayoutRepository.
type PayoutRepository struct {
	q Querier
}

// Create persists a new payout.
func (r *PayoutRepository) Create(ctx context.Context, payout *domain.Payout) error {
	query := `
		INSERT INTO payouts (id, participation_id, carpool_id, driver_id, amount, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		payout.ID,
		payout.ParticipationID,
		payout.CarpoolID,
		payout.DriverID,
		payout.Amount,
		payout.Status,
		payout.Attempts,
		nullString(payout.LastError),
		payout.CreatedAt,
		payout.UpdatedAt,
	)
	return err
}

// ListPending retrieves pending payouts, oldest first.
// Rows already locked by another worker are skipped.
func (r *PayoutRepository) ListPending(ctx context.Context, limit int) ([]*domain.Payout, error) {
	query := `
		SELECT id, participation_id, carpool_id, driver_id, amount, status, attempts, last_error, created_at, updated_at
		FROM payouts WHERE status = $1
		ORDER BY created_at ASC LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.q.QueryContext(ctx, query, domain.PayoutStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		var p domain.Payout
		var lastError sql.NullString
		if err := rows.Scan(
			&p.ID,
			&p.ParticipationID,
			&p.CarpoolID,
			&p.DriverID,
			&p.Amount,
			&p.Status,
			&p.Attempts,
			&lastError,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.LastError = lastError.String
		payouts = append(payouts, &p)
	}

	return payouts, rows.Err()
}

// Update updates an existing payout.
func (r *PayoutRepository) Update(ctx context.Context, payout *domain.Payout) error {
	query := `
		UPDATE payouts SET status = $1, attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		payout.Status,
		payout.Attempts,
		nullString(payout.LastError),
		payout.UpdatedAt,
		payout.ID,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, repository.ErrNotFound)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// Ensure interfaces are satisfied.
var (
	_ repository.CreditTransactionRepository = (*CreditTransactionRepository)(nil)
	_ repository.PayoutRepository            = (*PayoutRepository)(nil)
)
