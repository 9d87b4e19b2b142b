package models

import "time"

// CleaningTask is owned by this system. Auto-sourced tasks mirror a PMS
// booking; manual tasks have no booking linkage.
type CleaningTask struct {
	ID            int64     `json:"id"`
	BookingID     *int64    `json:"booking_id,omitempty"`
	PropertyID    int64     `json:"property_id"`
	RoomID        int64     `json:"room_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Status        string    `json:"status"` // pending, assigned, in_progress, completed, cancelled
	TeamID        *int64    `json:"team_id,omitempty"`
	Source        string    `json:"source"` // auto, manual
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsActive reports whether the task still counts against the one-active-
// task-per-booking invariant.
func (t CleaningTask) IsActive() bool {
	return t.Status != TaskStatusCancelled
}

// CanReschedule reports whether the sync may move the task to a new date.
// Tasks a cleaner has already picked up must not be silently moved.
func (t CleaningTask) CanReschedule() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusAssigned
}

// CanCancel reports whether the sync may cancel the task when its booking
// disappears or is cancelled upstream.
func (t CleaningTask) CanCancel() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusAssigned
}
