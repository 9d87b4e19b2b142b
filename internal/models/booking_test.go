package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBooking_Qualifies(t *testing.T) {
	checkOut := time.Date(2025, 7, 4, 11, 0, 0, 0, time.UTC)

	assert.True(t, Booking{Status: BookingStatusConfirmed, CheckOut: checkOut}.Qualifies())
	assert.True(t, Booking{Status: BookingStatusModified, CheckOut: checkOut}.Qualifies())
	assert.False(t, Booking{Status: BookingStatusCancelled, CheckOut: checkOut}.Qualifies())
	assert.False(t, Booking{Status: BookingStatusConfirmed}.Qualifies())
}

func TestBooking_TurnoverDate(t *testing.T) {
	b := Booking{CheckOut: time.Date(2025, 7, 4, 11, 30, 45, 0, time.UTC)}
	assert.Equal(t, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), b.TurnoverDate())
}

func TestCleaningTask_Transitions(t *testing.T) {
	for _, status := range []string{TaskStatusPending, TaskStatusAssigned} {
		task := CleaningTask{Status: status}
		assert.True(t, task.CanReschedule(), status)
		assert.True(t, task.CanCancel(), status)
	}
	for _, status := range []string{TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled} {
		task := CleaningTask{Status: status}
		assert.False(t, task.CanReschedule(), status)
		assert.False(t, task.CanCancel(), status)
	}
}
