package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"housekeeper/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const taskColumns = `id, booking_id, property_id, room_id, scheduled_date, status, team_id, source, notes, created_at, updated_at`

// CreateTask inserts a task in its own transaction. A unique-index
// violation on the active-booking index maps to ErrDuplicateActiveTask.
func (db *DB) CreateTask(ctx context.Context, task *models.CleaningTask) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Source == "" {
		task.Source = models.TaskSourceAuto
	}
	now := time.Now().UTC()

	query := `
        INSERT INTO cleaning_tasks (booking_id, property_id, room_id, scheduled_date, status, team_id, source, notes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	result, err := db.db.ExecContext(ctx, query,
		nullableID(task.BookingID),
		task.PropertyID,
		task.RoomID,
		task.ScheduledDate.Format(models.DateFormat),
		task.Status,
		nullableID(task.TeamID),
		task.Source,
		task.Notes,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActiveTask
		}
		return fmt.Errorf("create cleaning task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create cleaning task: last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.CleaningTask, error) {
	query := `SELECT ` + taskColumns + ` FROM cleaning_tasks WHERE id = ?`
	return db.scanTaskRow(db.db.QueryRowContext(ctx, query, id))
}

// GetActiveTaskByBooking returns the single non-cancelled auto task linked
// to the booking, or ErrTaskNotFound.
func (db *DB) GetActiveTaskByBooking(ctx context.Context, bookingID int64) (*models.CleaningTask, error) {
	query := `SELECT ` + taskColumns + `
        FROM cleaning_tasks
        WHERE booking_id = ? AND source = 'auto' AND status != 'cancelled'`
	return db.scanTaskRow(db.db.QueryRowContext(ctx, query, bookingID))
}

// GetActiveTaskByRoomDate returns an active task already covering the room
// on the given date. Used for the same-day-turnover reuse policy.
func (db *DB) GetActiveTaskByRoomDate(ctx context.Context, roomID int64, date time.Time) (*models.CleaningTask, error) {
	query := `SELECT ` + taskColumns + `
        FROM cleaning_tasks
        WHERE room_id = ? AND scheduled_date = ? AND status != 'cancelled'
        ORDER BY id LIMIT 1`
	return db.scanTaskRow(db.db.QueryRowContext(ctx, query, roomID, date.Format(models.DateFormat)))
}

// UpdateTaskSchedule moves a task to a new property/room/date. Guarded in
// SQL: tasks past the reschedulable statuses match no row and the caller
// gets ErrTaskConflict.
func (db *DB) UpdateTaskSchedule(ctx context.Context, id int64, propertyID, roomID int64, date time.Time) error {
	query := `
        UPDATE cleaning_tasks
        SET property_id = ?, room_id = ?, scheduled_date = ?, updated_at = ?
        WHERE id = ? AND status IN ('pending', 'assigned')
    `
	result, err := db.db.ExecContext(ctx, query,
		propertyID, roomID, date.Format(models.DateFormat), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update task schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task schedule: rows affected: %w", err)
	}
	if affected == 0 {
		return db.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (db *DB) UpdateTaskStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE cleaning_tasks SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task status: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// RelinkTaskBooking points an existing task at another booking, used when
// a same-day turnover hands the cleaning over to the incoming booking.
func (db *DB) RelinkTaskBooking(ctx context.Context, id int64, bookingID int64) error {
	query := `UPDATE cleaning_tasks SET booking_id = ?, updated_at = ? WHERE id = ? AND status != 'cancelled'`
	result, err := db.db.ExecContext(ctx, query, bookingID, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActiveTask
		}
		return fmt.Errorf("relink task booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("relink task booking: rows affected: %w", err)
	}
	if affected == 0 {
		return db.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (db *DB) ListTasks(ctx context.Context, propertyID int64, start, end time.Time) ([]models.CleaningTask, error) {
	query := `SELECT ` + taskColumns + `
        FROM cleaning_tasks
        WHERE property_id = ? AND scheduled_date BETWEEN ? AND ?
        ORDER BY scheduled_date, room_id, id`
	rows, err := db.db.QueryContext(ctx, query,
		propertyID, start.Format(models.DateFormat), end.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListAutoTasksForWindow returns auto-sourced tasks either linked to one of
// the fetched bookings or scheduled inside the window. The second leg
// catches bookings that disappeared from the upstream response.
func (db *DB) ListAutoTasksForWindow(ctx context.Context, propertyID int64, bookingIDs []int64, start, end time.Time) ([]models.CleaningTask, error) {
	args := []interface{}{propertyID}

	var bookingClause string
	if len(bookingIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(bookingIDs)), ",")
		bookingClause = `booking_id IN (` + placeholders + `) OR `
		for _, id := range bookingIDs {
			args = append(args, id)
		}
	}
	args = append(args, start.Format(models.DateFormat), end.Format(models.DateFormat))

	query := `SELECT ` + taskColumns + `
        FROM cleaning_tasks
        WHERE property_id = ? AND source = 'auto' AND (` + bookingClause + `scheduled_date BETWEEN ? AND ?)
        ORDER BY scheduled_date, id`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auto tasks for window: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (db *DB) CountActiveTasksByBooking(ctx context.Context, bookingID int64) (int, error) {
	query := `SELECT COUNT(*) FROM cleaning_tasks WHERE booking_id = ? AND status != 'cancelled'`
	var count int
	err := db.db.QueryRowContext(ctx, query, bookingID).Scan(&count)
	return count, err
}

func (db *DB) conflictOrNotFound(ctx context.Context, id int64) error {
	if _, err := db.GetTask(ctx, id); errors.Is(err, ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return ErrTaskConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanTaskRow(row rowScanner) (*models.CleaningTask, error) {
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func scanTask(row rowScanner) (*models.CleaningTask, error) {
	var (
		task      models.CleaningTask
		bookingID sql.NullInt64
		teamID    sql.NullInt64
		dateStr   string
	)
	err := row.Scan(
		&task.ID,
		&bookingID,
		&task.PropertyID,
		&task.RoomID,
		&dateStr,
		&task.Status,
		&teamID,
		&task.Source,
		&task.Notes,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bookingID.Valid {
		task.BookingID = &bookingID.Int64
	}
	if teamID.Valid {
		task.TeamID = &teamID.Int64
	}

	date, err := time.ParseInLocation(models.DateFormat, dateStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse scheduled_date %q: %w", dateStr, err)
	}
	task.ScheduledDate = date

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]models.CleaningTask, error) {
	var tasks []models.CleaningTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cleaning task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
