package domain

import (
	"context"
	"time"

	"housekeeper/internal/models"
)

// TaskStore is the persistence surface the reconciler writes through. All
// mutations are transactions scoped to a single task row.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.CleaningTask) error
	GetTask(ctx context.Context, id int64) (*models.CleaningTask, error)
	GetActiveTaskByBooking(ctx context.Context, bookingID int64) (*models.CleaningTask, error)
	GetActiveTaskByRoomDate(ctx context.Context, roomID int64, date time.Time) (*models.CleaningTask, error)
	UpdateTaskSchedule(ctx context.Context, id int64, propertyID, roomID int64, date time.Time) error
	UpdateTaskStatus(ctx context.Context, id int64, status string) error
	RelinkTaskBooking(ctx context.Context, id int64, bookingID int64) error
	ListTasks(ctx context.Context, propertyID int64, start, end time.Time) ([]models.CleaningTask, error)
	ListAutoTasksForWindow(ctx context.Context, propertyID int64, bookingIDs []int64, start, end time.Time) ([]models.CleaningTask, error)
	CountActiveTasksByBooking(ctx context.Context, bookingID int64) (int, error)
}

type TeamStore interface {
	GetTeam(ctx context.Context, id int64) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	TeamsForProperty(ctx context.Context, propertyID int64) ([]models.Team, error)
}

// Pinger reports whether the persistence store is reachable. A failed
// ping at run start is the one fatal condition a sync run has.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RunStore interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	FinishRun(ctx context.Context, id string, status string, stats string) error
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// PMSClient reads reservation and rate data from the external PMS.
type PMSClient interface {
	ListBookings(ctx context.Context, auth models.PMSAuth, propertyIDs []int64, start, end time.Time) ([]models.Booking, error)
	GetRates(ctx context.Context, auth models.PMSAuth, propertyID, roomID int64, start, end time.Time) (map[string]models.RateEntry, error)
}

// ChannelSender delivers one event over one transport.
type ChannelSender interface {
	Type() string
	Send(ctx context.Context, target string, event models.TeamEvent) error
}

// Dispatcher fans an event out across a team's channels independently.
// It never fails as a whole; callers inspect the attempt list.
type Dispatcher interface {
	NotifyTeam(ctx context.Context, team models.Team, event models.TeamEvent) []models.NotificationAttempt
	TestTeam(ctx context.Context, team models.Team) ([]models.NotificationAttempt, bool)
}

// RunLocker guards a property against overlapping sync runs.
type RunLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Syncer is the orchestrator entry point exposed to the trigger surface.
type Syncer interface {
	Run(ctx context.Context, start, end time.Time) (*models.SyncRunSummary, string, error)
}
