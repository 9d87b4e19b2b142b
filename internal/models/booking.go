package models

import "time"

// Booking is a reservation as reported by the PMS. It is external ground
// truth and never mutated locally.
type Booking struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	RoomID     int64     `json:"room_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email"`
	GuestPhone string    `json:"guest_phone"`
	Status     string    `json:"status"` // confirmed, modified, cancelled
	ModifiedAt time.Time `json:"modified_at"`
}

// Qualifies reports whether the booking should have a cleaning task.
func (b Booking) Qualifies() bool {
	return b.Status != BookingStatusCancelled && !b.CheckOut.IsZero()
}

// TurnoverDate is the date the room must be cleaned: the day the outgoing
// guest checks out.
func (b Booking) TurnoverDate() time.Time {
	return DateOnly(b.CheckOut)
}

// DateOnly strips the time-of-day component, keeping UTC date semantics.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
