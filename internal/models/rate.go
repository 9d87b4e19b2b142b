package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateEntry is a nightly price snapshot for one (property, room, date),
// re-fetched from the PMS per request. Never cached across requests.
type RateEntry struct {
	PropertyID int64           `json:"property_id"`
	RoomID     int64           `json:"room_id"`
	RoomName   string          `json:"room_name,omitempty"`
	Date       time.Time       `json:"date"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Available  bool            `json:"available"`
}
