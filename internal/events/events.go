package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTaskCreated   = "task_created"
	EventTaskUpdated   = "task_updated"
	EventTaskCancelled = "task_cancelled"
	EventSyncCompleted = "sync_completed"
)

// TaskEventPayload is the minimal task snapshot for event consumers.
type TaskEventPayload struct {
	TaskID        int64     `json:"task_id"`
	BookingID     int64     `json:"booking_id,omitempty"`
	PropertyID    int64     `json:"property_id"`
	RoomID        int64     `json:"room_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Status        string    `json:"status"`
	RunID         string    `json:"run_id,omitempty"`
}

// SyncEventPayload summarizes a finished run for event consumers.
type SyncEventPayload struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Cancelled int    `json:"cancelled"`
	Errors    int    `json:"errors"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
