package models

import "time"

// Team is a cleaning crew responsible for one or more properties.
type Team struct {
	ID          int64           `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	PropertyIDs []int64         `json:"property_ids" yaml:"property_ids"`
	Channels    []ChannelConfig `json:"channels" yaml:"channels"`
	CreatedAt   time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"-"`
}

// ChannelConfig describes one delivery channel for a team. Target carries
// the channel address: a chat id for telegram, a URL for webhook, a
// mailbox for email.
type ChannelConfig struct {
	Type   string `json:"type" yaml:"type"` // telegram, webhook, email
	Target string `json:"target" yaml:"target"`
}

// ServesProperty reports whether the team covers the given property.
func (t Team) ServesProperty(propertyID int64) bool {
	for _, id := range t.PropertyIDs {
		if id == propertyID {
			return true
		}
	}
	return false
}
