package service

import "errors"

// The messages below are returned to clients verbatim.

var (
	// ErrCarpoolNotFound is returned when the carpool does not exist.
	ErrCarpoolNotFound = errors.New("Carpool not found")

	// ErrParticipationNotFound is returned when the user has no active participation on the carpool.
	ErrParticipationNotFound = errors.New("Participation not found")

	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("User not found")
)

var (
	// ErrNoSeatsAvailable is returned when the carpool is full.
	ErrNoSeatsAvailable = errors.New("No seats available")

	// ErrCarpoolNotOpen is returned when joining a carpool that is no longer pending.
	ErrCarpoolNotOpen = errors.New("Carpool is not open for booking")

	// ErrCannotJoinOwnCarpool is returned when the driver tries to join their own carpool.
	ErrCannotJoinOwnCarpool = errors.New("You cannot join your own carpool")

	// ErrInsufficientCredits is returned when the passenger cannot pay for the seat.
	ErrInsufficientCredits = errors.New("Insufficient credits")

	// ErrAlreadyParticipating is returned when the user already holds a seat on the carpool.
	ErrAlreadyParticipating = errors.New("You are already participating in this carpool")

	// ErrNotDriver is returned when the acting user does not drive the carpool.
	ErrNotDriver = errors.New("You are not the driver of this carpool")

	// ErrCarpoolCannotBeStarted is returned when starting a carpool that is not pending.
	ErrCarpoolCannotBeStarted = errors.New("Carpool cannot be started")

	// ErrCarpoolNotInProgress is returned when completing a carpool that has not started.
	ErrCarpoolNotInProgress = errors.New("Carpool is not in progress")

	// ErrCarpoolCannotBeCancelled is returned when cancelling a carpool that is not pending.
	ErrCarpoolCannotBeCancelled = errors.New("Carpool cannot be cancelled")

	// ErrCarpoolNotCompleted is returned when validating a trip before the carpool completed.
	ErrCarpoolNotCompleted = errors.New("Carpool is not completed")

	// ErrTripAlreadyJudged is returned when the passenger already validated or reported the trip.
	ErrTripAlreadyJudged = errors.New("Trip already validated or problem already reported")

	// ErrParticipationLocked is returned when cancelling a seat on a started or validated trip.
	ErrParticipationLocked = errors.New("Participation can no longer be cancelled")

	// ErrEmailAlreadyRegistered is returned when registering a known email.
	ErrEmailAlreadyRegistered = errors.New("Email already registered")
)

var (
	// ErrInvalidCarpoolID is returned when carpool ID is empty.
	ErrInvalidCarpoolID = errors.New("Carpool id is required")

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("User id is required")

	// ErrInvalidSeats is returned when total seats are out of range.
	ErrInvalidSeats = errors.New("Seats must be between 1 and 8")

	// ErrInvalidPrice is returned when the price does not cover the platform commission.
	ErrInvalidPrice = errors.New("Price must cover the platform commission")

	// ErrMissingCities is returned when departure or arrival city is empty.
	ErrMissingCities = errors.New("Departure and arrival cities are required")

	// ErrInvalidDuration is returned when the estimated duration is negative.
	ErrInvalidDuration = errors.New("Estimated duration cannot be negative")

	// ErrInvalidUserDetails is returned when name or email is missing.
	ErrInvalidUserDetails = errors.New("Name and email are required")
)

var notFoundErrors = []error{
	ErrCarpoolNotFound,
	ErrParticipationNotFound,
	ErrUserNotFound,
}

var rejectedErrors = []error{
	ErrNoSeatsAvailable,
	ErrCarpoolNotOpen,
	ErrCannotJoinOwnCarpool,
	ErrInsufficientCredits,
	ErrAlreadyParticipating,
	ErrNotDriver,
	ErrCarpoolCannotBeStarted,
	ErrCarpoolNotInProgress,
	ErrCarpoolCannotBeCancelled,
	ErrCarpoolNotCompleted,
	ErrTripAlreadyJudged,
	ErrParticipationLocked,
	ErrEmailAlreadyRegistered,
}

var invalidErrors = []error{
	ErrInvalidCarpoolID,
	ErrInvalidUserID,
	ErrInvalidSeats,
	ErrInvalidPrice,
	ErrMissingCities,
	ErrInvalidDuration,
	ErrInvalidUserDetails,
}

// IsNotFound reports whether err means a carpool, participation or user is absent.
func IsNotFound(err error) bool {
	return isAny(err, notFoundErrors)
}

// IsRejected reports whether err is a business-rule violation.
func IsRejected(err error) bool {
	return isAny(err, rejectedErrors)
}

// IsInvalid reports whether err is an input validation failure.
func IsInvalid(err error) bool {
	return isAny(err, invalidErrors)
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
