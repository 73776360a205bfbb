package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"scheduled to completed", StatusScheduled, StatusCompleted, true},
		{"scheduled to cancelled", StatusScheduled, StatusCancelled, true},
		{"scheduled to no_show", StatusScheduled, StatusNoShow, true},
		{"scheduled to late", StatusScheduled, StatusLate, true},
		{"completed is terminal", StatusCompleted, StatusScheduled, false},
		{"cancelled is terminal", StatusCancelled, StatusScheduled, false},
		{"no_show is terminal", StatusNoShow, StatusCompleted, false},
		{"late is terminal", StatusLate, StatusCancelled, false},
		{"same status is a no-op", StatusCancelled, StatusCancelled, true},
		{"unknown target", StatusScheduled, "archived", false},
		{"unknown source", "archived", StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to))
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow, StatusLate} {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus("pending"))
	assert.False(t, ValidStatus(""))
}

func TestAppointmentStartsAt(t *testing.T) {
	appt := &Appointment{Date: "2026-10-05", Time: "09:00"}

	start, err := appt.StartsAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC), start)

	bad := &Appointment{Date: "10/05/2026", Time: "09:00"}
	_, err = bad.StartsAt(time.UTC)
	assert.Error(t, err)

	badTime := &Appointment{Date: "2026-10-05", Time: "9am"}
	_, err = badTime.StartsAt(time.UTC)
	assert.Error(t, err)
}

func TestCanReceiveBookings(t *testing.T) {
	assert.True(t, CanReceiveBookings(RoleTrainer))
	assert.True(t, CanReceiveBookings(RoleAdmin))
	assert.False(t, CanReceiveBookings(RoleUser))
	assert.False(t, CanReceiveBookings(""))
}
