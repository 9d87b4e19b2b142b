package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"housekeeper/internal/domain"
	"housekeeper/internal/events"
	"housekeeper/internal/logging"
	"housekeeper/internal/metrics"
	"housekeeper/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStoreUnavailable is fatal: with the store unreachable there is
// nothing to reconcile against and no partial stats to report.
var ErrStoreUnavailable = errors.New("persistence store unreachable")

// Orchestrator drives one sync run end to end: window resolution,
// per-property locking, reconciliation, team notification and the audit
// record. It implements domain.Syncer.
type Orchestrator struct {
	reconciler  *Reconciler
	store       domain.Pinger
	runs        domain.RunStore
	teams       domain.TeamStore
	dispatcher  domain.Dispatcher
	locker      domain.RunLocker
	eventBus    domain.EventPublisher
	propertyIDs []int64

	pastDays   int
	futureDays int
	lockTTL    time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

type OrchestratorOptions struct {
	PropertyIDs      []int64
	WindowPastDays   int
	WindowFutureDays int
	LockTTL          time.Duration
}

func NewOrchestrator(
	reconciler *Reconciler,
	store domain.Pinger,
	runs domain.RunStore,
	teams domain.TeamStore,
	dispatcher domain.Dispatcher,
	locker domain.RunLocker,
	eventBus domain.EventPublisher,
	opts OrchestratorOptions,
	logger *zerolog.Logger,
) *Orchestrator {
	log := logging.Component(logger, "orchestrator")
	if opts.WindowPastDays <= 0 {
		opts.WindowPastDays = models.DefaultWindowPastDays
	}
	if opts.WindowFutureDays <= 0 {
		opts.WindowFutureDays = models.DefaultWindowFutureDays
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = models.DefaultRunLockTTL * time.Second
	}
	return &Orchestrator{
		reconciler:  reconciler,
		store:       store,
		runs:        runs,
		teams:       teams,
		dispatcher:  dispatcher,
		locker:      locker,
		eventBus:    eventBus,
		propertyIDs: opts.PropertyIDs,
		pastDays:    opts.WindowPastDays,
		futureDays:  opts.WindowFutureDays,
		lockTTL:     opts.LockTTL,
		logger:      log,
		now:         time.Now,
	}
}

// Run executes one sync over [start, end]. Zero times select the default
// rolling window around today.
func (o *Orchestrator) Run(ctx context.Context, start, end time.Time) (*models.SyncRunSummary, string, error) {
	today := models.DateOnly(o.now())
	if start.IsZero() {
		start = today.AddDate(0, 0, -o.pastDays)
	}
	if end.IsZero() {
		end = today.AddDate(0, 0, o.futureDays)
	}
	start = models.DateOnly(start)
	end = models.DateOnly(end)
	if !start.Before(end) {
		return nil, "", fmt.Errorf("invalid sync window %s..%s", start.Format(models.DateFormat), end.Format(models.DateFormat))
	}

	if o.store != nil {
		if err := o.store.Ping(ctx); err != nil {
			o.logger.Error().Err(err).Msg("store unreachable, aborting run")
			return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	runID := uuid.NewString()
	startedAt := o.now()
	o.logger.Info().
		Str("run_id", runID).
		Str("window_start", start.Format(models.DateFormat)).
		Str("window_end", end.Format(models.DateFormat)).
		Msg("sync run started")

	if o.runs != nil {
		run := &models.SyncRun{
			ID:          runID,
			Status:      models.RunStatusRunning,
			WindowStart: start,
			WindowEnd:   end,
			StartedAt:   startedAt,
		}
		if err := o.runs.CreateRun(ctx, run); err != nil {
			o.logger.Error().Err(err).Str("run_id", runID).Msg("run audit record failed")
		}
	}

	summary := &models.SyncRunSummary{}
	locked := o.acquireLocks(ctx, runID, summary)
	defer o.releaseLocks(locked)

	if len(locked) > 0 {
		propSummary := o.reconciler.Reconcile(ctx, runID, locked, start, end)
		mergeSummaries(summary, propSummary)
	}

	o.dispatch(ctx, runID, start, end, summary)

	status := models.RunStatusCompleted
	if len(summary.Errors) > 0 || summary.Truncated {
		status = models.RunStatusCompletedWithErrors
	}
	metrics.IncRun(status)

	if o.runs != nil {
		stats, err := json.Marshal(summary)
		if err != nil {
			stats = []byte("{}")
		}
		if err := o.runs.FinishRun(ctx, runID, status, string(stats)); err != nil {
			o.logger.Error().Err(err).Str("run_id", runID).Msg("run audit finish failed")
		}
	}

	o.publishCompleted(runID, status, summary)

	o.logger.Info().
		Str("run_id", runID).
		Str("status", status).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("cancelled", summary.Cancelled).
		Int("unchanged", summary.Unchanged).
		Int("conflicts", summary.Conflicts).
		Int("errors", len(summary.Errors)).
		Bool("truncated", summary.Truncated).
		Dur("duration", o.now().Sub(startedAt)).
		Msg("sync run finished")

	return summary, runID, nil
}

// acquireLocks takes the per-property run lock for every configured
// property; ones already held by a concurrent run are skipped and
// recorded, never waited on.
func (o *Orchestrator) acquireLocks(ctx context.Context, runID string, summary *models.SyncRunSummary) []int64 {
	if o.locker == nil {
		return o.propertyIDs
	}

	locked := make([]int64, 0, len(o.propertyIDs))
	for _, propertyID := range o.propertyIDs {
		ok, err := o.locker.Lock(ctx, propertyLockKey(propertyID), o.lockTTL)
		if err != nil {
			o.logger.Error().Err(err).Int64("property_id", propertyID).Msg("lock acquire error")
			summary.Errors = append(summary.Errors, models.SyncError{
				PropertyID: propertyID,
				Kind:       models.ErrKindPersistence,
				Message:    fmt.Sprintf("run lock: %v", err),
			})
			continue
		}
		if !ok {
			o.logger.Warn().Int64("property_id", propertyID).Str("run_id", runID).Msg("property locked by concurrent run, skipping")
			summary.Errors = append(summary.Errors, models.SyncError{
				PropertyID: propertyID,
				Kind:       models.ErrKindConflict,
				Message:    "property locked by a concurrent sync run",
			})
			continue
		}
		locked = append(locked, propertyID)
	}
	return locked
}

func (o *Orchestrator) releaseLocks(propertyIDs []int64) {
	if o.locker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, propertyID := range propertyIDs {
		if err := o.locker.Unlock(ctx, propertyLockKey(propertyID)); err != nil {
			o.logger.Error().Err(err).Int64("property_id", propertyID).Msg("lock release error")
		}
	}
}

// dispatch notifies every team affected by the run. Delivery failures are
// recorded on the summary and never fail the run.
func (o *Orchestrator) dispatch(ctx context.Context, runID string, start, end time.Time, summary *models.SyncRunSummary) {
	if o.dispatcher == nil || o.teams == nil || !summary.Changed() {
		return
	}

	for _, teamID := range summary.AffectedTeamIDs {
		team, err := o.teams.GetTeam(ctx, teamID)
		if err != nil {
			o.logger.Error().Err(err).Int64("team_id", teamID).Msg("team lookup failed, skipping notification")
			summary.Errors = append(summary.Errors, models.SyncError{
				Kind:    models.ErrKindDispatch,
				Message: fmt.Sprintf("team %d lookup failed: %v", teamID, err),
			})
			continue
		}

		event := models.TeamEvent{
			Type:        models.TeamEventSyncSummary,
			RunID:       runID,
			Created:     summary.Created,
			Updated:     summary.Updated,
			Cancelled:   summary.Cancelled,
			WindowStart: start,
			WindowEnd:   end,
		}
		attempts := o.dispatcher.NotifyTeam(ctx, *team, event)
		summary.Attempts = append(summary.Attempts, attempts...)
		for _, attempt := range attempts {
			if !attempt.Success {
				summary.Errors = append(summary.Errors, models.SyncError{
					Kind:    models.ErrKindDispatch,
					Message: fmt.Sprintf("team %d channel %s: %s", attempt.TeamID, attempt.Channel, attempt.Error),
				})
			}
		}
	}
}

func (o *Orchestrator) publishCompleted(runID, status string, summary *models.SyncRunSummary) {
	if o.eventBus == nil {
		return
	}
	payload := events.SyncEventPayload{
		RunID:     runID,
		Status:    status,
		Created:   summary.Created,
		Updated:   summary.Updated,
		Cancelled: summary.Cancelled,
		Errors:    len(summary.Errors),
	}
	if err := o.eventBus.PublishJSON(events.EventSyncCompleted, payload); err != nil {
		o.logger.Error().Err(err).Str("run_id", runID).Msg("publish event error")
	}
}

func mergeSummaries(dst, src *models.SyncRunSummary) {
	dst.Created += src.Created
	dst.Updated += src.Updated
	dst.Cancelled += src.Cancelled
	dst.Unchanged += src.Unchanged
	dst.Conflicts += src.Conflicts
	dst.Truncated = dst.Truncated || src.Truncated
	dst.Errors = append(dst.Errors, src.Errors...)
	dst.Attempts = append(dst.Attempts, src.Attempts...)
	for _, teamID := range src.AffectedTeamIDs {
		dst.AddTeam(teamID)
	}
}

func propertyLockKey(propertyID int64) string {
	return fmt.Sprintf("property:%d", propertyID)
}
