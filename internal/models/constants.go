package models

const (
	TaskStatusPending    = "pending"
	TaskStatusAssigned   = "assigned"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

const (
	TaskSourceAuto   = "auto"
	TaskSourceManual = "manual"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusModified  = "modified"
	BookingStatusCancelled = "cancelled"
)

const (
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
	ChannelEmail    = "email"
)

const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
	RunStatusFailed              = "failed"
)

const (
	ErrKindUpstreamUnavailable = "upstream_unavailable"
	ErrKindUpstreamRejected    = "upstream_rejected"
	ErrKindConflict            = "conflict"
	ErrKindPersistence         = "persistence"
	ErrKindDispatch            = "dispatch"
)

const (
	// DateFormat is the wire format for date-only values.
	DateFormat = "2006-01-02"

	// DefaultMaxNights caps a priced stay length.
	DefaultMaxNights = 90

	// DefaultWindowPastDays / DefaultWindowFutureDays bound the rolling
	// sync window: yesterday through two weeks ahead.
	DefaultWindowPastDays   = 1
	DefaultWindowFutureDays = 14

	// DefaultRunLockTTL seconds a per-property run lock is held at most.
	DefaultRunLockTTL = 10 * 60
)
