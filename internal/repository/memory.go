package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"housekeeper/internal/database"
	"housekeeper/internal/models"
)

// MemoryStore is an in-memory TaskStore/TeamStore. It mirrors the SQLite
// store's semantics, including the one-active-auto-task-per-booking
// invariant, and backs the reconciler tests.
type MemoryStore struct {
	mu     sync.Mutex
	tasks  map[int64]models.CleaningTask
	teams  map[int64]models.Team
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  make(map[int64]models.CleaningTask),
		teams:  make(map[int64]models.Team),
		nextID: 1,
	}
}

// Ping always succeeds; the in-memory store cannot be unreachable.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) CreateTask(ctx context.Context, task *models.CleaningTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Source == "" {
		task.Source = models.TaskSourceAuto
	}

	if task.BookingID != nil && task.Source == models.TaskSourceAuto {
		for _, existing := range m.tasks {
			if existing.Source == models.TaskSourceAuto && existing.IsActive() &&
				existing.BookingID != nil && *existing.BookingID == *task.BookingID {
				return database.ErrDuplicateActiveTask
			}
		}
	}

	now := time.Now().UTC()
	task.ID = m.nextID
	m.nextID++
	task.CreatedAt = now
	task.UpdatedAt = now
	m.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (m *MemoryStore) GetTask(ctx context.Context, id int64) (*models.CleaningTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, database.ErrTaskNotFound
	}
	task = cloneTask(task)
	return &task, nil
}

func (m *MemoryStore) GetActiveTaskByBooking(ctx context.Context, bookingID int64) (*models.CleaningTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, task := range m.tasks {
		if task.Source == models.TaskSourceAuto && task.IsActive() &&
			task.BookingID != nil && *task.BookingID == bookingID {
			task = cloneTask(task)
			return &task, nil
		}
	}
	return nil, database.ErrTaskNotFound
}

func (m *MemoryStore) GetActiveTaskByRoomDate(ctx context.Context, roomID int64, date time.Time) (*models.CleaningTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.CleaningTask
	for _, task := range m.tasks {
		if task.RoomID == roomID && task.IsActive() && task.ScheduledDate.Equal(models.DateOnly(date)) {
			if found == nil || task.ID < found.ID {
				t := cloneTask(task)
				found = &t
			}
		}
	}
	if found == nil {
		return nil, database.ErrTaskNotFound
	}
	return found, nil
}

func (m *MemoryStore) UpdateTaskSchedule(ctx context.Context, id int64, propertyID, roomID int64, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return database.ErrTaskNotFound
	}
	if !task.CanReschedule() {
		return database.ErrTaskConflict
	}

	task.PropertyID = propertyID
	task.RoomID = roomID
	task.ScheduledDate = models.DateOnly(date)
	task.UpdatedAt = time.Now().UTC()
	m.tasks[id] = task
	return nil
}

func (m *MemoryStore) UpdateTaskStatus(ctx context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return database.ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	m.tasks[id] = task
	return nil
}

func (m *MemoryStore) RelinkTaskBooking(ctx context.Context, id int64, bookingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return database.ErrTaskNotFound
	}
	if !task.IsActive() {
		return database.ErrTaskConflict
	}

	task.BookingID = &bookingID
	task.UpdatedAt = time.Now().UTC()
	m.tasks[id] = task
	return nil
}

func (m *MemoryStore) ListTasks(ctx context.Context, propertyID int64, start, end time.Time) ([]models.CleaningTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CleaningTask
	for _, task := range m.tasks {
		if task.PropertyID == propertyID && inWindow(task.ScheduledDate, start, end) {
			out = append(out, cloneTask(task))
		}
	}
	sortTasks(out)
	return out, nil
}

func (m *MemoryStore) ListAutoTasksForWindow(ctx context.Context, propertyID int64, bookingIDs []int64, start, end time.Time) ([]models.CleaningTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[int64]bool, len(bookingIDs))
	for _, id := range bookingIDs {
		ids[id] = true
	}

	var out []models.CleaningTask
	for _, task := range m.tasks {
		if task.PropertyID != propertyID || task.Source != models.TaskSourceAuto {
			continue
		}
		linked := task.BookingID != nil && ids[*task.BookingID]
		if linked || inWindow(task.ScheduledDate, start, end) {
			out = append(out, cloneTask(task))
		}
	}
	sortTasks(out)
	return out, nil
}

func (m *MemoryStore) CountActiveTasksByBooking(ctx context.Context, bookingID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, task := range m.tasks {
		if task.IsActive() && task.BookingID != nil && *task.BookingID == bookingID {
			count++
		}
	}
	return count, nil
}

// Team store methods

func (m *MemoryStore) SetTeams(teams []models.Team) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teams = make(map[int64]models.Team, len(teams))
	for _, team := range teams {
		m.teams[team.ID] = team
	}
}

func (m *MemoryStore) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	team, ok := m.teams[id]
	if !ok {
		return nil, database.ErrTeamNotFound
	}
	return &team, nil
}

func (m *MemoryStore) ListTeams(ctx context.Context) ([]models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Team, 0, len(m.teams))
	for _, team := range m.teams {
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) TeamsForProperty(ctx context.Context, propertyID int64) ([]models.Team, error) {
	teams, err := m.ListTeams(ctx)
	if err != nil {
		return nil, err
	}

	var matched []models.Team
	for _, team := range teams {
		if team.ServesProperty(propertyID) {
			matched = append(matched, team)
		}
	}
	return matched, nil
}

func cloneTask(task models.CleaningTask) models.CleaningTask {
	if task.BookingID != nil {
		id := *task.BookingID
		task.BookingID = &id
	}
	if task.TeamID != nil {
		id := *task.TeamID
		task.TeamID = &id
	}
	return task
}

func inWindow(date, start, end time.Time) bool {
	d := models.DateOnly(date)
	return !d.Before(models.DateOnly(start)) && !d.After(models.DateOnly(end))
}

func sortTasks(tasks []models.CleaningTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ScheduledDate.Equal(tasks[j].ScheduledDate) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].ScheduledDate.Before(tasks[j].ScheduledDate)
	})
}
