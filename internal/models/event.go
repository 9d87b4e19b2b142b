package models

import "time"

const (
	TeamEventSyncSummary = "sync_summary"
	TeamEventTest        = "test"
)

// TeamEvent is the payload delivered to a team's channels after a run, or
// as a configuration test.
type TeamEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id,omitempty"`
	TeamID      int64     `json:"team_id"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Cancelled   int       `json:"cancelled"`
	WindowStart time.Time `json:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// PMSAuth is the per-call authentication context for the PMS. The adapter
// holds no session state; callers supply credentials on every call.
type PMSAuth struct {
	Token   string `json:"-" yaml:"token"`
	PropKey string `json:"-" yaml:"prop_key"`
}
