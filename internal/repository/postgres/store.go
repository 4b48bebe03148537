package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"carpool/internal/repository"
)

// Store is a PostgreSQL implementation of repository.Store.
//
// Transactions run at READ COMMITTED; mutating operations serialize on the
// carpool row through SELECT ... FOR UPDATE and change balances with atomic
// increments, so the rows they touch behave serializably.
type Store struct {
	db *sql.DB
}

// NewStore creates a new PostgreSQL store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repos returns repositories bound to the connection pool.
func (s *Store) Repos() repository.Repositories {
	return newRepositories(s.db)
}

// WithinTx runs fn inside a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newRepositories(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func newRepositories(q Querier) repository.Repositories {
	return repository.Repositories{
		Carpools:       &CarpoolRepository{q: q},
		Participations: &ParticipationRepository{q: q},
		Users:          &UserRepository{q: q},
		Transactions:   &CreditTransactionRepository{q: q},
		Payouts:        &PayoutRepository{q: q},
	}
}

// Ensure Store implements repository.Store.
var _ repository.Store = (*Store)(nil)
