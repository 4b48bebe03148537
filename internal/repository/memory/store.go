// Package memory provides an in-process implementation of repository.Store.
//
// Transactions take an exclusive lock, work on a copy of the data and swap it
// in on commit, so a failed transaction leaves no trace.
package memory

import (
	"context"
	"sync"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// state holds every table. All entities are stored by value.
type state struct {
	carpools       map[string]domain.Carpool
	participations map[string]domain.Participation
	users          map[string]domain.User
	transactions   []domain.CreditTransaction
	payouts        map[string]domain.Payout
}

func newState() *state {
	return &state{
		carpools:       make(map[string]domain.Carpool),
		participations: make(map[string]domain.Participation),
		users:          make(map[string]domain.User),
		payouts:        make(map[string]domain.Payout),
	}
}

func (s *state) clone() *state {
	c := &state{
		carpools:       make(map[string]domain.Carpool, len(s.carpools)),
		participations: make(map[string]domain.Participation, len(s.participations)),
		users:          make(map[string]domain.User, len(s.users)),
		transactions:   make([]domain.CreditTransaction, len(s.transactions)),
		payouts:        make(map[string]domain.Payout, len(s.payouts)),
	}
	for k, v := range s.carpools {
		c.carpools[k] = v
	}
	for k, v := range s.participations {
		c.participations[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	copy(c.transactions, s.transactions)
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	return c
}

// Store is an in-memory implementation of repository.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Repos returns repositories that lock the store on every call.
func (s *Store) Repos() repository.Repositories {
	return s.repos(&lockedView{store: s})
}

// WithinTx runs fn against a private copy of the data and commits it if fn
// returns nil. Transactions are fully serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(s.repos(&txView{state: work})); err != nil {
		return err
	}

	s.state = work
	return nil
}

func (s *Store) repos(v view) repository.Repositories {
	return repository.Repositories{
		Carpools:       &carpoolRepository{v: v},
		Participations: &participationRepository{v: v},
		Users:          &userRepository{v: v},
		Transactions:   &transactionRepository{v: v},
		Payouts:        &payoutRepository{v: v},
	}
}

// DeleteCarpool removes a carpool record, keeping its participations.
func (s *Store) DeleteCarpool(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.carpools, id)
}

// DeleteUser removes a user record.
func (s *Store) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.users, id)
}

// view gives a repository access to the data under the right lock.
type view interface {
	read(fn func(st *state))
	write(fn func(st *state))
}

type lockedView struct {
	store *Store
}

func (v *lockedView) read(fn func(st *state)) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn(v.store.state)
}

func (v *lockedView) write(fn func(st *state)) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	fn(v.store.state)
}

// txView is used while the store lock is already held by WithinTx.
type txView struct {
	state *state
}

func (v *txView) read(fn func(st *state))  { fn(v.state) }
func (v *txView) write(fn func(st *state)) { fn(v.state) }

// Ensure Store implements repository.Store.
var _ repository.Store = (*Store)(nil)
