package models

import "time"

// NotificationAttempt is the outcome of one channel delivery. Ephemeral:
// lives only in the run summary and logs.
type NotificationAttempt struct {
	TeamID  int64  `json:"team_id"`
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SyncError is a non-fatal failure recorded against a single booking,
// property or channel during a run.
type SyncError struct {
	PropertyID int64  `json:"property_id,omitempty"`
	BookingID  int64  `json:"booking_id,omitempty"`
	Kind       string `json:"kind"` // upstream_unavailable, upstream_rejected, conflict, persistence, dispatch
	Message    string `json:"message"`
}

// SyncRunSummary aggregates one reconcile run.
type SyncRunSummary struct {
	Created         int                   `json:"created"`
	Updated         int                   `json:"updated"`
	Cancelled       int                   `json:"cancelled"`
	Unchanged       int                   `json:"unchanged"`
	Conflicts       int                   `json:"conflicts"`
	AffectedTeamIDs []int64               `json:"affected_team_ids"`
	Attempts        []NotificationAttempt `json:"notification_attempts"`
	Errors          []SyncError           `json:"errors"`
	Truncated       bool                  `json:"truncated,omitempty"`
}

// Changed reports whether the run mutated any task.
func (s SyncRunSummary) Changed() bool {
	return s.Created > 0 || s.Updated > 0 || s.Cancelled > 0
}

// AddTeam records a team as affected, deduplicating.
func (s *SyncRunSummary) AddTeam(teamID int64) {
	for _, id := range s.AffectedTeamIDs {
		if id == teamID {
			return
		}
	}
	s.AffectedTeamIDs = append(s.AffectedTeamIDs, teamID)
}

// SyncRun is the persisted audit record of one orchestrator run.
type SyncRun struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"` // running, completed, completed_with_errors, failed
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Stats       string     `json:"stats,omitempty"` // SyncRunSummary as JSON
}
