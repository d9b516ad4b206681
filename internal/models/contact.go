package models

import "time"

// Contact represents an address book entry.
type Contact struct {
	UID          string     `json:"uid,omitempty"`
	FirstName    string     `json:"firstName" validate:"required"`
	LastName     string     `json:"lastName" validate:"required"`
	Email        string     `json:"email" validate:"required,email"`
	WorkPhone    string     `json:"workPhone,omitempty"`
	MobilePhone  string     `json:"mobilePhone,omitempty"`
	Organization string     `json:"organization,omitempty"`
	NextMeeting  *time.Time `json:"nextMeeting,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// FullName is the display name written to FN.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Validate checks that the contact carries every field required for encoding.
func (c Contact) Validate() error {
	return ValidateStruct(c)
}
