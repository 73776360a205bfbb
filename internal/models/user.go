package models

import (
	"strings"
	"time"
)

// Roles. Trainers and admins are distinct; either may receive bookings.
const (
	RoleUser    = "user"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// ValidRole reports whether s is one of the recognized roles.
func ValidRole(s string) bool {
	switch s {
	case RoleUser, RoleTrainer, RoleAdmin:
		return true
	}
	return false
}

// CanReceiveBookings reports whether a user with the given role may be the
// trainer side of an appointment.
func CanReceiveBookings(role string) bool {
	return role == RoleTrainer || role == RoleAdmin
}

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	Role                string
	TokenVersion        int // monotone counter; tokens below it are revoked
	EmailVerified       bool
	FailedLoginAttempts int
	LockoutUntil        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName joins first and last name for display and search.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsLockedOut reports whether the account lockout window is active at now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutUntil != nil && now.Before(*u.LockoutUntil)
}
