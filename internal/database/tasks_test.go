package database

import (
	"context"
	"testing"
	"time"

	"housekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func autoTask(bookingID int64, roomID int64, date string) *models.CleaningTask {
	return &models.CleaningTask{
		BookingID:     &bookingID,
		PropertyID:    272758,
		RoomID:        roomID,
		ScheduledDate: day(date),
		Status:        models.TaskStatusPending,
		Source:        models.TaskSourceAuto,
	}
}

func TestCreateTask_AndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, task))
	require.NotZero(t, task.ID)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BookingID)
	assert.Equal(t, int64(1001), *got.BookingID)
	assert.Equal(t, "2025-07-04", got.ScheduledDate.Format(models.DateFormat))
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Equal(t, models.TaskSourceAuto, got.Source)
}

func TestCreateTask_DuplicateActiveBookingRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateTask(ctx, autoTask(1001, 570479, "2025-07-04")))

	err := db.CreateTask(ctx, autoTask(1001, 570479, "2025-07-05"))
	assert.ErrorIs(t, err, ErrDuplicateActiveTask)
}

func TestCreateTask_CancelledTaskFreesBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, first))
	require.NoError(t, db.UpdateTaskStatus(ctx, first.ID, models.TaskStatusCancelled))

	// The partial index only covers active tasks.
	require.NoError(t, db.CreateTask(ctx, autoTask(1001, 570479, "2025-07-04")))
}

func TestCreateTask_ManualTasksNotConstrained(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	manual := autoTask(1001, 570479, "2025-07-04")
	manual.Source = models.TaskSourceManual
	require.NoError(t, db.CreateTask(ctx, manual))

	second := autoTask(1001, 570479, "2025-07-04")
	second.Source = models.TaskSourceManual
	require.NoError(t, db.CreateTask(ctx, second))
}

func TestGetActiveTaskByBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetActiveTaskByBooking(ctx, 1001)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	task := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, task))

	got, err := db.GetActiveTaskByBooking(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCancelled))
	_, err = db.GetActiveTaskByBooking(ctx, 1001)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetActiveTaskByRoomDate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, task))

	got, err := db.GetActiveTaskByRoomDate(ctx, 570479, day("2025-07-04"))
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = db.GetActiveTaskByRoomDate(ctx, 570479, day("2025-07-05"))
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateTaskSchedule_GuardedByStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, task))

	require.NoError(t, db.UpdateTaskSchedule(ctx, task.ID, 272758, 570479, day("2025-07-06")))
	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-06", got.ScheduledDate.Format(models.DateFormat))

	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, models.TaskStatusInProgress))
	err = db.UpdateTaskSchedule(ctx, task.ID, 272758, 570479, day("2025-07-07"))
	assert.ErrorIs(t, err, ErrTaskConflict)

	err = db.UpdateTaskSchedule(ctx, 99999, 272758, 570479, day("2025-07-07"))
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRelinkTaskBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, task))

	require.NoError(t, db.RelinkTaskBooking(ctx, task.ID, 2002))

	got, err := db.GetActiveTaskByBooking(ctx, 2002)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	// Relinking onto a booking that already has an active task trips the
	// unique index.
	other := autoTask(3003, 570480, "2025-07-05")
	require.NoError(t, db.CreateTask(ctx, other))
	err = db.RelinkTaskBooking(ctx, other.ID, 2002)
	assert.ErrorIs(t, err, ErrDuplicateActiveTask)
}

func TestListAutoTasksForWindow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inWindow := autoTask(1001, 570479, "2025-07-04")
	require.NoError(t, db.CreateTask(ctx, inWindow))

	// Linked to a fetched booking but scheduled outside the window.
	outside := autoTask(1002, 570480, "2025-09-01")
	require.NoError(t, db.CreateTask(ctx, outside))

	// Unrelated booking outside the window: invisible to the sweep.
	unrelated := autoTask(1003, 570481, "2025-09-02")
	require.NoError(t, db.CreateTask(ctx, unrelated))

	manual := autoTask(1004, 570482, "2025-07-05")
	manual.Source = models.TaskSourceManual
	require.NoError(t, db.CreateTask(ctx, manual))

	tasks, err := db.ListAutoTasksForWindow(ctx, 272758, []int64{1001, 1002}, day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	ids := []int64{tasks[0].ID, tasks[1].ID}
	assert.Contains(t, ids, inWindow.ID)
	assert.Contains(t, ids, outside.ID)
}

func TestCountActiveTasksByBooking_NeverExceedsOne(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateTask(ctx, autoTask(1001, 570479, "2025-07-04")))
	err := db.CreateTask(ctx, autoTask(1001, 570479, "2025-07-05"))
	require.ErrorIs(t, err, ErrDuplicateActiveTask)

	count, err := db.CountActiveTasksByBooking(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
