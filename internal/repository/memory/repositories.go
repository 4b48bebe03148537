package memory

import (
	"context"
	"sort"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

type carpoolRepository struct {
	v view
}

func (r *carpoolRepository) Create(ctx context.Context, carpool *domain.Carpool) error {
	r.v.write(func(st *state) {
		st.carpools[carpool.ID] = *carpool
	})
	return nil
}

func (r *carpoolRepository) GetByID(ctx context.Context, id string) (*domain.Carpool, error) {
	var out *domain.Carpool
	r.v.read(func(st *state) {
		if c, ok := st.carpools[id]; ok {
			out = &c
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// GetByIDForUpdate needs no row lock: transactions are serialized.
func (r *carpoolRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Carpool, error) {
	return r.GetByID(ctx, id)
}

func (r *carpoolRepository) ListByStatus(ctx context.Context, status domain.CarpoolStatus, limit int) ([]*domain.Carpool, error) {
	var out []*domain.Carpool
	r.v.read(func(st *state) {
		for _, c := range st.carpools {
			if c.Status == status {
				c := c
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *carpoolRepository) Update(ctx context.Context, carpool *domain.Carpool) error {
	found := false
	r.v.write(func(st *state) {
		if _, ok := st.carpools[carpool.ID]; ok {
			st.carpools[carpool.ID] = *carpool
			found = true
		}
	})
	if !found {
		return repository.ErrNotFound
	}
	return nil
}

type participationRepository struct {
	v view
}

func (r *participationRepository) Create(ctx context.Context, p *domain.Participation) error {
	var err error
	r.v.write(func(st *state) {
		for _, existing := range st.participations {
			if existing.CarpoolID == p.CarpoolID && existing.UserID == p.UserID &&
				existing.Status != domain.ParticipationStatusCancelled {
				err = repository.ErrDuplicateParticipation
				return
			}
		}
		st.participations[p.ID] = *p
	})
	return err
}

func (r *participationRepository) GetActive(ctx context.Context, carpoolID, userID string) (*domain.Participation, error) {
	var out *domain.Participation
	r.v.read(func(st *state) {
		for _, p := range st.participations {
			if p.CarpoolID == carpoolID && p.UserID == userID && p.Status != domain.ParticipationStatusCancelled {
				p := p
				out = &p
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *participationRepository) Update(ctx context.Context, p *domain.Participation) error {
	found := false
	r.v.write(func(st *state) {
		if _, ok := st.participations[p.ID]; ok {
			st.participations[p.ID] = *p
			found = true
		}
	})
	if !found {
		return repository.ErrNotFound
	}
	return nil
}

func (r *participationRepository) ListByCarpool(ctx context.Context, carpoolID string) ([]*domain.Participation, error) {
	var out []*domain.Participation
	r.v.read(func(st *state) {
		for _, p := range st.participations {
			if p.CarpoolID == carpoolID {
				p := p
				out = append(out, &p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type userRepository struct {
	v view
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	var err error
	r.v.write(func(st *state) {
		for _, existing := range st.users {
			if existing.Email == user.Email {
				err = repository.ErrDuplicateEmail
				return
			}
		}
		st.users[user.ID] = *user
	})
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	r.v.read(func(st *state) {
		if u, ok := st.users[id]; ok {
			out = &u
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *userRepository) AdjustBalance(ctx context.Context, id string, delta int) (int, error) {
	var balance int
	var err error
	r.v.write(func(st *state) {
		u, ok := st.users[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if u.Credits+delta < 0 {
			err = repository.ErrInsufficientCredits
			return
		}
		u.Credits += delta
		st.users[id] = u
		balance = u.Credits
	})
	return balance, err
}

type transactionRepository struct {
	v view
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.CreditTransaction) error {
	r.v.write(func(st *state) {
		st.transactions = append(st.transactions, *tx)
	})
	return nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CreditTransaction, error) {
	var out []*domain.CreditTransaction
	r.v.read(func(st *state) {
		for i := len(st.transactions) - 1; i >= 0; i-- {
			if st.transactions[i].UserID == userID {
				tx := st.transactions[i]
				out = append(out, &tx)
				if limit > 0 && len(out) == limit {
					return
				}
			}
		}
	})
	return out, nil
}

type payoutRepository struct {
	v view
}

func (r *payoutRepository) Create(ctx context.Context, payout *domain.Payout) error {
	r.v.write(func(st *state) {
		st.payouts[payout.ID] = *payout
	})
	return nil
}

func (r *payoutRepository) ListPending(ctx context.Context, limit int) ([]*domain.Payout, error) {
	var out []*domain.Payout
	r.v.read(func(st *state) {
		for _, p := range st.payouts {
			if p.Status == domain.PayoutStatusPending {
				p := p
				out = append(out, &p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *payoutRepository) Update(ctx context.Context, payout *domain.Payout) error {
	found := false
	r.v.write(func(st *state) {
		if _, ok := st.payouts[payout.ID]; ok {
			st.payouts[payout.ID] = *payout
			found = true
		}
	})
	if !found {
		return repository.ErrNotFound
	}
	return nil
}
