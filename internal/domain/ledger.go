package domain

import "time"

// CreditTransactionType is the business reason for a balance change.
type CreditTransactionType string

const (
	CreditSignupBonus         CreditTransactionType = "SIGNUP_BONUS"
	CreditJoinDebit           CreditTransactionType = "JOIN_DEBIT"
	CreditParticipationRefund CreditTransactionType = "PARTICIPATION_REFUND"
	CreditCarpoolCancelRefund CreditTransactionType = "CARPOOL_CANCEL_REFUND"
	CreditDriverPayout        CreditTransactionType = "DRIVER_PAYOUT"
)

// CreditTransaction is one journal row for a balance delta.
type CreditTransaction struct {
	ID        string
	UserID    string
	Amount    int // Positive for credit, negative for debit.
	Type      CreditTransactionType
	CarpoolID string
	CreatedAt time.Time
}

// PayoutStatus represents the state of a driver payout.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "PENDING"
	PayoutStatusPaid    PayoutStatus = "PAID"
	PayoutStatusFailed  PayoutStatus = "FAILED"
)

// Payout records the driver credit owed for one validated participation.
type Payout struct {
	ID              string
	ParticipationID string
	CarpoolID       string
	DriverID        string
	Amount          int
	Status          PayoutStatus
	Attempts        int
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
