package repository

import "context"

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Carpools       CarpoolRepository
	Participations ParticipationRepository
	Users          UserRepository
	Transactions   CreditTransactionRepository
	Payouts        PayoutRepository
}

// Store gives access to repositories, either directly or inside a transaction.
type Store interface {
	// Repos returns repositories that run each call on its own.
	Repos() Repositories

	// WithinTx runs fn in a single transaction. The transaction commits if fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
