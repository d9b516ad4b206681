package models

import "time"

// Participant is an invited attendee of an Event.
type Participant struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// Event represents a calendar event as exchanged with the automation platform.
// This is an internal representation, independent of the iCalendar encoding.
type Event struct {
	UID          string        `json:"uid,omitempty"` // Assigned by the bridge, never taken from input
	Summary      string        `json:"summary" validate:"required"`
	Description  string        `json:"description,omitempty"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	Location     string        `json:"location,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Participants []Participant `json:"participants,omitempty" validate:"dive"`
}

// Validate checks that the event carries every field required for encoding.
func (e Event) Validate() error {
	fields := structFieldErrors(e)
	if e.Start.IsZero() {
		fields["start"] = "is required"
	}
	if e.End.IsZero() {
		fields["end"] = "is required"
	}
	if !e.Start.IsZero() && !e.End.IsZero() && e.End.Before(e.Start) {
		fields["end"] = "must not be before start"
	}
	return newValidationError(fields)
}
