package domain

import "time"

// CarpoolStatus represents the lifecycle state of a carpool.
type CarpoolStatus string

const (
	CarpoolStatusPending    CarpoolStatus = "PENDING"
	CarpoolStatusInProgress CarpoolStatus = "IN_PROGRESS"
	CarpoolStatusCompleted  CarpoolStatus = "COMPLETED"
	CarpoolStatusCancelled  CarpoolStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s CarpoolStatus) Valid() bool {
	switch s {
	case CarpoolStatusPending, CarpoolStatusInProgress, CarpoolStatusCompleted, CarpoolStatusCancelled:
		return true
	}
	return false
}

// Seat bounds for a carpool.
const (
	MinSeats = 1
	MaxSeats = 8
)

// DefaultPlatformCommission is the credit amount retained from each validated trip.
const DefaultPlatformCommission = 2

// Carpool represents a trip published by a driver.
type Carpool struct {
	ID                string
	DriverID          string
	DepartureCity     string
	ArrivalCity       string
	DepartureLocation string
	ArrivalLocation   string
	DepartureDate     string // Display value, not parsed.
	DepartureTime     string
	ArrivalDate       string
	ArrivalTime       string
	EstimatedDuration *int // Minutes.
	TotalSeats        int
	AvailableSeats    int
	PricePerPerson    int
	Status            CarpoolStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Summary returns a short human-readable description of the route.
func (c *Carpool) Summary() string {
	s := c.DepartureCity + " → " + c.ArrivalCity
	if c.DepartureDate != "" {
		s += " on " + c.DepartureDate
	}
	if c.DepartureTime != "" {
		s += " at " + c.DepartureTime
	}
	return s
}

// DriverPayout returns the credits owed to the driver for one validated seat.
func (c *Carpool) DriverPayout(commission int) int {
	payout := c.PricePerPerson - commission
	if payout < 0 {
		return 0
	}
	return payout
}
