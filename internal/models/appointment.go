package models

import "time"

// Appointment statuses. Only scheduled appointments may transition; the rest
// are terminal.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
	StatusLate      = "late"
)

// DateLayout and TimeLayout are the wire formats for appointment slots.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ValidStatus reports whether s is a recognized appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow, StatusLate:
		return true
	}
	return false
}

// ValidTransition reports whether an appointment may move from one status to
// another. Keeping the same status is always permitted (cancel is idempotent).
func ValidTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	return from == StatusScheduled
}

// Appointment is one bookable hour between a client and a trainer. Date and
// Time use DateLayout and TimeLayout; together with TrainerID they identify
// the slot, which holds a fixed-size client capacity.
type Appointment struct {
	ID        string
	ClientID  string
	TrainerID string
	Date      string
	Time      string
	Status    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Populated display names, filled by list/read queries.
	ClientName  string
	TrainerName string
}

// StartsAt resolves the appointment's wall-clock start in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
}
