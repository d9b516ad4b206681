// Package codec converts events and contacts to and from their iCalendar
// (RFC 5545) and vCard (RFC 6350) text records.
//
// Encoding validates its input and fails only on validation errors.
// Decoding never fails: malformed records decode to an empty or partial
// result, because callers treat "nothing parsed" as "no data".
package codec

import (
	"errors"
	"time"

	"davbridge/internal/ident"
)

const (
	ContentTypeCalendar = "text/calendar; charset=utf-8"
	ContentTypeVCard    = "text/vcard; charset=utf-8"

	// utcLayout is the compact UTC "basic" form used for DTSTART, DTEND and
	// X-NEXT-MEETING.
	utcLayout = "20060102T150405Z"
)

var errEmptyUID = errors.New("codec: empty UID")

// Record is an encoded text record ready to be handed to the store.
type Record struct {
	UID         string
	Body        []byte
	ContentType string
}

// Codec encodes records, drawing fresh identifiers from its generator. It
// holds no other state and is safe for concurrent use when the generator is.
type Codec struct {
	ids ident.Generator
}

// New returns a Codec. A nil generator falls back to random UUIDs.
func New(ids ident.Generator) *Codec {
	if ids == nil {
		ids = ident.UUID{}
	}
	return &Codec{ids: ids}
}

func formatUTC(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(utcLayout)
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{utcLayout, "20060102T150405", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
