package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"housekeeper/internal/models"
	"housekeeper/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	events []models.TeamEvent
	fail   bool
}

func (f *fakeDispatcher) NotifyTeam(ctx context.Context, team models.Team, event models.TeamEvent) []models.NotificationAttempt {
	f.events = append(f.events, event)
	attempt := models.NotificationAttempt{TeamID: team.ID, Channel: models.ChannelWebhook, Success: !f.fail}
	if f.fail {
		attempt.Error = "delivery refused"
	}
	return []models.NotificationAttempt{attempt}
}

func (f *fakeDispatcher) TestTeam(ctx context.Context, team models.Team) ([]models.NotificationAttempt, bool) {
	attempts := f.NotifyTeam(ctx, team, models.TeamEvent{Type: models.TeamEventTest})
	return attempts, !f.fail
}

type fakeRunStore struct {
	created  []models.SyncRun
	statuses map[string]string
	stats    map[string]string
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{statuses: make(map[string]string), stats: make(map[string]string)}
}

func (f *fakeRunStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRunStore) FinishRun(ctx context.Context, id string, status string, stats string) error {
	f.statuses[id] = status
	f.stats[id] = stats
	return nil
}

func (f *fakeRunStore) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return f.created, nil
}

type orchestratorEnv struct {
	orch       *Orchestrator
	store      *repository.MemoryStore
	pmsClient  *fakePMS
	dispatcher *fakeDispatcher
	runs       *fakeRunStore
	locker     *repository.LocalRunLock
}

func setupOrchestrator(bookings ...models.Booking) *orchestratorEnv {
	store := repository.NewMemoryStore()
	store.SetTeams([]models.Team{{ID: 7, Name: "Crew", PropertyIDs: []int64{272758}}})
	pmsClient := &fakePMS{byProperty: map[int64][]models.Booking{272758: bookings}}
	dispatcher := &fakeDispatcher{}
	runs := newFakeRunStore()
	locker := repository.NewLocalRunLock()

	reconciler := NewReconciler(store, store, pmsClient, models.PMSAuth{}, nil, nil)
	orch := NewOrchestrator(reconciler, store, runs, store, dispatcher, locker, nil, OrchestratorOptions{
		PropertyIDs: []int64{272758},
	}, nil)

	return &orchestratorEnv{
		orch:       orch,
		store:      store,
		pmsClient:  pmsClient,
		dispatcher: dispatcher,
		runs:       runs,
		locker:     locker,
	}
}

func TestOrchestratorRun_EndToEnd(t *testing.T) {
	env := setupOrchestrator(
		booking(1001, 570479, "2025-07-01", "2025-07-04", models.BookingStatusConfirmed),
	)

	summary, runID, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	assert.Equal(t, 1, summary.Created)

	// Audit record opened and closed.
	require.Len(t, env.runs.created, 1)
	assert.Equal(t, runID, env.runs.created[0].ID)
	assert.Equal(t, models.RunStatusRunning, env.runs.created[0].Status)
	assert.Equal(t, models.RunStatusCompleted, env.runs.statuses[runID])
	assert.Contains(t, env.runs.stats[runID], `"created":1`)

	// The affected team was notified once.
	require.Len(t, env.dispatcher.events, 1)
	assert.Equal(t, models.TeamEventSyncSummary, env.dispatcher.events[0].Type)
	assert.Equal(t, runID, env.dispatcher.events[0].RunID)
	assert.Equal(t, 1, env.dispatcher.events[0].Created)
	require.Len(t, summary.Attempts, 1)
	assert.True(t, summary.Attempts[0].Success)
}

func TestOrchestratorRun_NoChangesNoNotification(t *testing.T) {
	env := setupOrchestrator(
		booking(1001, 570479, "2025-07-01", "2025-07-04", models.BookingStatusConfirmed),
	)

	_, _, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	require.Len(t, env.dispatcher.events, 1)

	summary, _, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	assert.False(t, summary.Changed())
	assert.Len(t, env.dispatcher.events, 1, "unchanged run must not notify")
}

func TestOrchestratorRun_DispatchFailureRecorded(t *testing.T) {
	env := setupOrchestrator(
		booking(1001, 570479, "2025-07-01", "2025-07-04", models.BookingStatusConfirmed),
	)
	env.dispatcher.fail = true

	summary, runID, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)

	// The run itself completed; the failed delivery is on the record.
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Attempts, 1)
	assert.False(t, summary.Attempts[0].Success)
	require.NotEmpty(t, summary.Errors)
	assert.Equal(t, models.ErrKindDispatch, summary.Errors[0].Kind)
	assert.Equal(t, models.RunStatusCompletedWithErrors, env.runs.statuses[runID])
}

func TestOrchestratorRun_ConcurrentRunSkipsLockedProperty(t *testing.T) {
	env := setupOrchestrator(
		booking(1001, 570479, "2025-07-01", "2025-07-04", models.BookingStatusConfirmed),
	)

	// Another run holds the property lock.
	ok, err := env.locker.Lock(context.Background(), propertyLockKey(272758), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	summary, _, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	assert.False(t, summary.Changed())
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, models.ErrKindConflict, summary.Errors[0].Kind)

	// After release, the next run proceeds and creates exactly one task.
	require.NoError(t, env.locker.Unlock(context.Background(), propertyLockKey(272758)))
	summary, _, err = env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	count, err := env.store.CountActiveTasksByBooking(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrchestratorRun_LockReleasedAfterRun(t *testing.T) {
	env := setupOrchestrator()

	_, _, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)

	ok, err := env.locker.Lock(context.Background(), propertyLockKey(272758), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

type deadPinger struct{}

func (deadPinger) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestOrchestratorRun_StoreUnreachableIsFatal(t *testing.T) {
	env := setupOrchestrator(
		booking(1001, 570479, "2025-07-01", "2025-07-04", models.BookingStatusConfirmed),
	)
	env.orch.store = deadPinger{}

	summary, runID, err := env.orch.Run(context.Background(), day("2025-07-01"), day("2025-07-15"))
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// No partial stats, no audit record, nothing reconciled or notified.
	assert.Nil(t, summary)
	assert.Empty(t, runID)
	assert.Empty(t, env.runs.created)
	assert.Empty(t, env.dispatcher.events)

	count, countErr := env.store.CountActiveTasksByBooking(context.Background(), 1001)
	require.NoError(t, countErr)
	assert.Zero(t, count)
}

func TestOrchestratorRun_InvalidWindow(t *testing.T) {
	env := setupOrchestrator()

	_, _, err := env.orch.Run(context.Background(), day("2025-07-15"), day("2025-07-01"))
	assert.Error(t, err)
	assert.Empty(t, env.runs.created)
}

func TestOrchestratorRun_DefaultWindow(t *testing.T) {
	env := setupOrchestrator()
	env.orch.now = func() time.Time { return day("2025-07-10") }

	_, runID, err := env.orch.Run(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)

	require.Len(t, env.runs.created, 1)
	assert.Equal(t, runID, env.runs.created[0].ID)
	assert.Equal(t, "2025-07-09", env.runs.created[0].WindowStart.Format(models.DateFormat))
	assert.Equal(t, "2025-07-24", env.runs.created[0].WindowEnd.Format(models.DateFormat))
}
