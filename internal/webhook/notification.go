package webhook

import "time"

// Notification types.
const (
	EventCreated   = "event.created"
	EventUpdated   = "event.updated"
	EventDeleted   = "event.deleted"
	ContactCreated = "contact.created"
	ContactUpdated = "contact.updated"
	ContactDeleted = "contact.deleted"
)

// KnownTypes lists every notification type a subscription may filter on.
var KnownTypes = []string{
	EventCreated, EventUpdated, EventDeleted,
	ContactCreated, ContactUpdated, ContactDeleted,
}

// Notification is the JSON body POSTed to subscribers.
type Notification struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
