package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateParticipation is returned when a user already holds a
	// non-cancelled participation on the carpool.
	ErrDuplicateParticipation = errors.New("duplicate active participation")

	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrInsufficientCredits is returned when a debit would make a balance negative.
	ErrInsufficientCredits = errors.New("insufficient credits")
)
