package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"housekeeper/internal/database"
	"housekeeper/internal/domain"
	"housekeeper/internal/events"
	"housekeeper/internal/logging"
	"housekeeper/internal/models"
	"housekeeper/internal/pms"

	"github.com/rs/zerolog"
)

// Reconciler diffs the PMS booking window against persisted cleaning tasks
// and applies the minimal set of create/update/cancel mutations, each in
// its own single-row transaction. Matching is by booking identifier, which
// is what makes re-runs a no-op.
type Reconciler struct {
	tasks    domain.TaskStore
	teams    domain.TeamStore
	pmsAPI   domain.PMSClient
	auth     models.PMSAuth
	eventBus domain.EventPublisher
	logger   zerolog.Logger
}

func NewReconciler(tasks domain.TaskStore, teams domain.TeamStore, pmsAPI domain.PMSClient, auth models.PMSAuth, eventBus domain.EventPublisher, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		tasks:    tasks,
		teams:    teams,
		pmsAPI:   pmsAPI,
		auth:     auth,
		eventBus: eventBus,
		logger:   logging.Component(logger, "reconciler"),
	}
}

// Reconcile processes every property in scope. Per-property and
// per-booking failures are recorded and never abort the run; a cancelled
// context stops between bookings and flags the summary as truncated.
func (r *Reconciler) Reconcile(ctx context.Context, runID string, propertyIDs []int64, start, end time.Time) *models.SyncRunSummary {
	summary := &models.SyncRunSummary{}

	for _, propertyID := range propertyIDs {
		if ctx.Err() != nil {
			summary.Truncated = true
			break
		}
		r.reconcileProperty(ctx, runID, propertyID, start, end, summary)
	}

	return summary
}

func (r *Reconciler) reconcileProperty(ctx context.Context, runID string, propertyID int64, start, end time.Time, summary *models.SyncRunSummary) {
	bookings, err := r.pmsAPI.ListBookings(ctx, r.auth, []int64{propertyID}, start, end)
	if err != nil {
		kind := models.ErrKindUpstreamUnavailable
		if errors.Is(err, pms.ErrUpstreamRejected) {
			kind = models.ErrKindUpstreamRejected
		}
		r.logger.Error().Err(err).Int64("property_id", propertyID).Msg("booking fetch failed, skipping property")
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: propertyID,
			Kind:       kind,
			Message:    fmt.Sprintf("booking fetch failed: %s", kind),
		})
		return
	}

	bookingIDs := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		bookingIDs = append(bookingIDs, b.ID)
	}

	existing, err := r.tasks.ListAutoTasksForWindow(ctx, propertyID, bookingIDs, start, end)
	if err != nil {
		r.logger.Error().Err(err).Int64("property_id", propertyID).Msg("task fetch failed, skipping property")
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: propertyID,
			Kind:       models.ErrKindPersistence,
			Message:    "task fetch failed",
		})
		return
	}

	taskByBooking := make(map[int64]models.CleaningTask)
	for _, task := range existing {
		if task.BookingID != nil && task.IsActive() {
			taskByBooking[*task.BookingID] = task
		}
	}

	// Qualifying bookings indexed by (room, turnover date) so a cancelled
	// outgoing booking can hand its task to the incoming one.
	heirs := make(map[turnoverKey]models.Booking)
	for _, b := range bookings {
		if b.Qualifies() {
			key := turnoverKey{roomID: b.RoomID, date: b.TurnoverDate().Format(models.DateFormat)}
			if _, taken := heirs[key]; !taken {
				heirs[key] = b
			}
		}
	}

	// Mutations are applied strictly in upstream enumeration order; that
	// keeps the same-day-turnover tie-break deterministic.
	seen := make(map[int64]bool, len(bookings))
	for _, booking := range bookings {
		if ctx.Err() != nil {
			summary.Truncated = true
			return
		}
		seen[booking.ID] = true
		r.applyBooking(ctx, runID, booking, taskByBooking, heirs, summary)
	}

	// Tasks whose booking disappeared from the upstream window entirely.
	for _, task := range existing {
		if ctx.Err() != nil {
			summary.Truncated = true
			return
		}
		if task.BookingID == nil || seen[*task.BookingID] || !task.IsActive() {
			continue
		}
		r.cancelTask(ctx, runID, task, summary)
	}
}

type turnoverKey struct {
	roomID int64
	date   string
}

func (r *Reconciler) applyBooking(ctx context.Context, runID string, booking models.Booking, taskByBooking map[int64]models.CleaningTask, heirs map[turnoverKey]models.Booking, summary *models.SyncRunSummary) {
	task, hasTask := taskByBooking[booking.ID]

	if !booking.Qualifies() {
		if !hasTask {
			return
		}

		// A same-day heir takes over the clean instead of cancel+create.
		key := turnoverKey{roomID: task.RoomID, date: models.DateOnly(task.ScheduledDate).Format(models.DateFormat)}
		if heir, ok := heirs[key]; ok && heir.ID != booking.ID {
			if _, heirHasTask := taskByBooking[heir.ID]; !heirHasTask {
				r.relinkTask(ctx, runID, task, heir, taskByBooking, summary)
				return
			}
		}

		r.cancelTask(ctx, runID, task, summary)
		return
	}

	if !hasTask {
		r.createTask(ctx, runID, booking, taskByBooking, summary)
		return
	}

	r.compareAndUpdate(ctx, runID, booking, task, summary)
}

func (r *Reconciler) createTask(ctx context.Context, runID string, booking models.Booking, taskByBooking map[int64]models.CleaningTask, summary *models.SyncRunSummary) {
	turnover := booking.TurnoverDate()

	// Same-day turnover: if an active task already covers this room and
	// date (from the outgoing booking or a manual entry), reuse it.
	if existing, err := r.tasks.GetActiveTaskByRoomDate(ctx, booking.RoomID, turnover); err == nil {
		summary.Unchanged++
		r.logger.Debug().
			Int64("booking_id", booking.ID).
			Int64("task_id", existing.ID).
			Msg("turnover date already covered, reusing task")
		return
	}

	bookingID := booking.ID
	task := models.CleaningTask{
		BookingID:     &bookingID,
		PropertyID:    booking.PropertyID,
		RoomID:        booking.RoomID,
		ScheduledDate: turnover,
		Status:        models.TaskStatusPending,
		Source:        models.TaskSourceAuto,
		TeamID:        r.defaultTeam(ctx, booking.PropertyID),
	}

	err := r.tasks.CreateTask(ctx, &task)
	if errors.Is(err, database.ErrDuplicateActiveTask) {
		// A concurrent run won the insert; fall through to the comparison.
		existing, getErr := r.tasks.GetActiveTaskByBooking(ctx, booking.ID)
		if getErr != nil {
			r.recordPersistence(summary, booking, getErr)
			return
		}
		r.compareAndUpdate(ctx, runID, booking, *existing, summary)
		return
	}
	if err != nil {
		r.recordPersistence(summary, booking, err)
		return
	}

	taskByBooking[booking.ID] = task
	summary.Created++
	r.markAffected(ctx, summary, task)
	r.publishTask(events.EventTaskCreated, runID, task)
	r.logger.Info().Int64("booking_id", booking.ID).Int64("task_id", task.ID).Msg("cleaning task created")
}

func (r *Reconciler) compareAndUpdate(ctx context.Context, runID string, booking models.Booking, task models.CleaningTask, summary *models.SyncRunSummary) {
	turnover := booking.TurnoverDate()
	unchanged := models.DateOnly(task.ScheduledDate).Equal(turnover) &&
		task.PropertyID == booking.PropertyID &&
		task.RoomID == booking.RoomID
	if unchanged {
		summary.Unchanged++
		return
	}

	if !task.CanReschedule() {
		summary.Conflicts++
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: booking.PropertyID,
			BookingID:  booking.ID,
			Kind:       models.ErrKindConflict,
			Message:    fmt.Sprintf("task %d is %s and cannot be rescheduled", task.ID, task.Status),
		})
		return
	}

	err := r.tasks.UpdateTaskSchedule(ctx, task.ID, booking.PropertyID, booking.RoomID, turnover)
	if errors.Is(err, database.ErrTaskConflict) {
		summary.Conflicts++
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: booking.PropertyID,
			BookingID:  booking.ID,
			Kind:       models.ErrKindConflict,
			Message:    fmt.Sprintf("task %d progressed concurrently and cannot be rescheduled", task.ID),
		})
		return
	}
	if err != nil {
		r.recordPersistence(summary, booking, err)
		return
	}

	task.PropertyID = booking.PropertyID
	task.RoomID = booking.RoomID
	task.ScheduledDate = turnover
	summary.Updated++
	r.markAffected(ctx, summary, task)
	r.publishTask(events.EventTaskUpdated, runID, task)
	r.logger.Info().Int64("booking_id", booking.ID).Int64("task_id", task.ID).Str("date", turnover.Format(models.DateFormat)).Msg("cleaning task rescheduled")
}

func (r *Reconciler) cancelTask(ctx context.Context, runID string, task models.CleaningTask, summary *models.SyncRunSummary) {
	if !task.CanCancel() {
		summary.Conflicts++
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: task.PropertyID,
			BookingID:  derefID(task.BookingID),
			Kind:       models.ErrKindConflict,
			Message:    fmt.Sprintf("task %d is %s, left untouched after booking cancellation", task.ID, task.Status),
		})
		return
	}

	if err := r.tasks.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCancelled); err != nil {
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: task.PropertyID,
			BookingID:  derefID(task.BookingID),
			Kind:       models.ErrKindPersistence,
			Message:    fmt.Sprintf("cancel task %d: %v", task.ID, err),
		})
		return
	}

	task.Status = models.TaskStatusCancelled
	summary.Cancelled++
	r.markAffected(ctx, summary, task)
	r.publishTask(events.EventTaskCancelled, runID, task)
	r.logger.Info().Int64("task_id", task.ID).Msg("cleaning task cancelled")
}

func (r *Reconciler) relinkTask(ctx context.Context, runID string, task models.CleaningTask, heir models.Booking, taskByBooking map[int64]models.CleaningTask, summary *models.SyncRunSummary) {
	if err := r.tasks.RelinkTaskBooking(ctx, task.ID, heir.ID); err != nil {
		summary.Errors = append(summary.Errors, models.SyncError{
			PropertyID: task.PropertyID,
			BookingID:  heir.ID,
			Kind:       models.ErrKindPersistence,
			Message:    fmt.Sprintf("relink task %d: %v", task.ID, err),
		})
		return
	}

	heirID := heir.ID
	task.BookingID = &heirID
	taskByBooking[heir.ID] = task
	summary.Updated++
	r.markAffected(ctx, summary, task)
	r.publishTask(events.EventTaskUpdated, runID, task)
	r.logger.Info().Int64("task_id", task.ID).Int64("booking_id", heir.ID).Msg("cleaning task handed over to same-day arrival")
}

// defaultTeam assigns the team when exactly one covers the property;
// ambiguous coverage is left for manual assignment.
func (r *Reconciler) defaultTeam(ctx context.Context, propertyID int64) *int64 {
	if r.teams == nil {
		return nil
	}
	teams, err := r.teams.TeamsForProperty(ctx, propertyID)
	if err != nil || len(teams) != 1 {
		return nil
	}
	id := teams[0].ID
	return &id
}

func (r *Reconciler) markAffected(ctx context.Context, summary *models.SyncRunSummary, task models.CleaningTask) {
	if task.TeamID != nil {
		summary.AddTeam(*task.TeamID)
	}
	if r.teams == nil {
		return
	}
	teams, err := r.teams.TeamsForProperty(ctx, task.PropertyID)
	if err != nil {
		return
	}
	for _, team := range teams {
		summary.AddTeam(team.ID)
	}
}

func (r *Reconciler) recordPersistence(summary *models.SyncRunSummary, booking models.Booking, err error) {
	r.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("task mutation failed")
	summary.Errors = append(summary.Errors, models.SyncError{
		PropertyID: booking.PropertyID,
		BookingID:  booking.ID,
		Kind:       models.ErrKindPersistence,
		Message:    fmt.Sprintf("task mutation failed: %v", err),
	})
}

func (r *Reconciler) publishTask(eventType, runID string, task models.CleaningTask) {
	if r.eventBus == nil {
		return
	}
	payload := events.TaskEventPayload{
		TaskID:        task.ID,
		BookingID:     derefID(task.BookingID),
		PropertyID:    task.PropertyID,
		RoomID:        task.RoomID,
		ScheduledDate: task.ScheduledDate,
		Status:        task.Status,
		RunID:         runID,
	}
	if err := r.eventBus.PublishJSON(eventType, payload); err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Int64("task_id", task.ID).Msg("publish event error")
	}
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
