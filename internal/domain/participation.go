package domain

import "time"

// ParticipationStatus represents the state of a passenger's reservation.
type ParticipationStatus string

const (
	ParticipationStatusConfirmed ParticipationStatus = "CONFIRMED"
	ParticipationStatusCancelled ParticipationStatus = "CANCELLED"
	ParticipationStatusValidated ParticipationStatus = "VALIDATED"
)

// HoldsSeat reports whether the participation occupies a seat.
func (s ParticipationStatus) HoldsSeat() bool {
	return s == ParticipationStatusConfirmed || s == ParticipationStatusValidated
}

// Participation represents a passenger's reservation against one carpool.
type Participation struct {
	ID             string
	CarpoolID      string
	UserID         string
	Status         ParticipationStatus
	CreditsUsed    int
	TripValidated  *bool // nil until the passenger judges the trip.
	ProblemComment string
	CreatedAt      time.Time
	ValidatedAt    time.Time
}

// IsJudged reports whether the passenger already validated or reported a problem.
func (p *Participation) IsJudged() bool {
	return p.TripValidated != nil
}
