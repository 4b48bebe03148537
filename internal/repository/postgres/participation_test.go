package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

var participationColumnNames = []string{
	"id", "carpool_id", "user_id", "status", "credits_used", "trip_validated",
	"problem_comment", "created_at", "validated_at",
}

func TestParticipationRepository_CreateWritesNulls(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO participations").
		WithArgs("p1", "c1", "alice", "CONFIRMED", 20, nil, nil, created, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	repo := &ParticipationRepository{q: db}

	err := repo.Create(context.Background(), &domain.Participation{
		ID:          "p1",
		CarpoolID:   "c1",
		UserID:      "alice",
		Status:      domain.ParticipationStatusConfirmed,
		CreditsUsed: 20,
		CreatedAt:   created,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParticipationRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO participations").
		WillReturnError(&pq.Error{Code: uniqueViolation})
	repo := &ParticipationRepository{q: db}

	err := repo.Create(context.Background(), &domain.Participation{ID: "p1", CarpoolID: "c1", UserID: "alice"})
	if !errors.Is(err, repository.ErrDuplicateParticipation) {
		t.Errorf("expected ErrDuplicateParticipation, got %v", err)
	}
}

func TestParticipationRepository_GetActiveScansNullable(t *testing.T) {
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	validatedAt := created.Add(6 * time.Hour)

	testCases := []struct {
		name            string
		validated       interface{}
		comment         interface{}
		validatedAt     interface{}
		wantValidated   *bool
		wantComment     string
		wantValidatedAt time.Time
	}{
		{
			name:        "unjudged",
			validated:   nil,
			comment:     nil,
			validatedAt: nil,
		},
		{
			name:            "problem reported",
			validated:       false,
			comment:         "driver was late",
			validatedAt:     validatedAt,
			wantValidated:   new(bool),
			wantComment:     "driver was late",
			wantValidatedAt: validatedAt,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery("FROM participations").
				WithArgs("c1", "alice", sqlmock.AnyArg()).
				WillReturnRows(sqlmock.NewRows(participationColumnNames).
					AddRow("p1", "c1", "alice", "CONFIRMED", 20, tc.validated, tc.comment, created, tc.validatedAt))
			repo := &ParticipationRepository{q: db}

			p, err := repo.GetActive(context.Background(), "c1", "alice")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			switch {
			case tc.wantValidated == nil && p.TripValidated != nil:
				t.Errorf("expected nil trip_validated, got %v", *p.TripValidated)
			case tc.wantValidated != nil && (p.TripValidated == nil || *p.TripValidated != *tc.wantValidated):
				t.Errorf("expected trip_validated %v, got %v", *tc.wantValidated, p.TripValidated)
			}
			if p.ProblemComment != tc.wantComment {
				t.Errorf("expected comment %q, got %q", tc.wantComment, p.ProblemComment)
			}
			if !p.ValidatedAt.Equal(tc.wantValidatedAt) {
				t.Errorf("expected validated at %v, got %v", tc.wantValidatedAt, p.ValidatedAt)
			}
			if p.Status != domain.ParticipationStatusConfirmed {
				t.Errorf("expected CONFIRMED, got %s", p.Status)
			}
		})
	}
}

func TestParticipationRepository_GetActiveNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM participations").
		WillReturnRows(sqlmock.NewRows(participationColumnNames))
	repo := &ParticipationRepository{q: db}

	if _, err := repo.GetActive(context.Background(), "c1", "alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
