package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

var carpoolColumnNames = []string{
	"id", "driver_id", "departure_city", "arrival_city", "departure_location", "arrival_location",
	"departure_date", "departure_time", "arrival_date", "arrival_time", "estimated_duration",
	"total_seats", "available_seats", "price_per_person", "status", "created_at", "updated_at",
}

func carpoolRow(duration interface{}, status string) *sqlmock.Rows {
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(carpoolColumnNames).AddRow(
		"c1", "driver", "Paris", "Lyon", "", "",
		"2026-11-02", "08:00", "", "", duration,
		3, 2, 20, status, created, created,
	)
}

func TestCarpoolRepository_GetByIDScansDuration(t *testing.T) {
	testCases := []struct {
		name         string
		duration     interface{}
		wantDuration *int
	}{
		{"null duration", nil, nil},
		{"set duration", int64(270), func() *int { d := 270; return &d }()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery("FROM carpools WHERE id").
				WithArgs("c1").
				WillReturnRows(carpoolRow(tc.duration, "PENDING"))
			repo := &CarpoolRepository{q: db}

			carpool, err := repo.GetByID(context.Background(), "c1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			switch {
			case tc.wantDuration == nil && carpool.EstimatedDuration != nil:
				t.Errorf("expected nil duration, got %d", *carpool.EstimatedDuration)
			case tc.wantDuration != nil && (carpool.EstimatedDuration == nil || *carpool.EstimatedDuration != *tc.wantDuration):
				t.Errorf("expected duration %d, got %v", *tc.wantDuration, carpool.EstimatedDuration)
			}
			if carpool.Status != domain.CarpoolStatusPending || carpool.AvailableSeats != 2 {
				t.Errorf("unexpected carpool %+v", carpool)
			}
		})
	}
}

func TestCarpoolRepository_GetByIDRejectsUnknownStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM carpools WHERE id").
		WithArgs("c1").
		WillReturnRows(carpoolRow(nil, "ARCHIVED"))
	repo := &CarpoolRepository{q: db}

	if _, err := repo.GetByID(context.Background(), "c1"); err == nil {
		t.Error("expected an error for an unknown status")
	}
}

func TestCarpoolRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM carpools WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(carpoolColumnNames))
	repo := &CarpoolRepository{q: db}

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCarpoolRepository_UpdateMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE carpools").
		WillReturnResult(sqlmock.NewResult(0, 0))
	repo := &CarpoolRepository{q: db}

	err := repo.Update(context.Background(), &domain.Carpool{ID: "missing", Status: domain.CarpoolStatusPending})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
