package domain

import "time"

// DefaultSignupCredits is the balance granted to a new account.
const DefaultSignupCredits = 20

// User represents a platform account and its credit balance.
type User struct {
	ID        string
	Name      string
	Email     string
	Credits   int
	CreatedAt time.Time
}
