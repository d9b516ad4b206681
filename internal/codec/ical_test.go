package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"davbridge/internal/ident"
	"davbridge/internal/models"
)

var march15 = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func meeting() models.Event {
	return models.Event{
		Summary: "Meeting",
		Start:   march15,
		End:     march15.Add(time.Hour),
	}
}

func TestEncodeEventLayout(t *testing.T) {
	c := New(ident.NewSequence("evt"))

	rec, err := c.EncodeEvent(meeting())
	require.NoError(t, err)

	want := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-1\r\n" +
		"SUMMARY:Meeting\r\n" +
		"DTSTART:20240315T100000Z\r\n" +
		"DTEND:20240315T110000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	assert.Equal(t, want, string(rec.Body))
	assert.Equal(t, "evt-1", rec.UID)
	assert.Equal(t, ContentTypeCalendar, rec.ContentType)
}

func TestEncodeEventOptionalFields(t *testing.T) {
	c := New(ident.NewSequence("evt"))
	e := meeting()
	e.Description = "Quarterly review"
	e.Location = "Room 1"
	e.Notes = "Bring slides"
	e.Participants = []models.Participant{
		{Email: "jane@example.com", Name: "Jane Smith"},
		{Email: "bob@example.com"},
	}

	rec, err := c.EncodeEvent(e)
	require.NoError(t, err)

	want := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-1\r\n" +
		"SUMMARY:Meeting\r\n" +
		"DTSTART:20240315T100000Z\r\n" +
		"DTEND:20240315T110000Z\r\n" +
		"DESCRIPTION:Quarterly review\r\n" +
		"LOCATION:Room 1\r\n" +
		"X-ALT-DESC;FMTTYPE=text/plain:Bring slides\r\n" +
		"ATTENDEE;CN=Jane Smith:mailto:jane@example.com\r\n" +
		"ATTENDEE:mailto:bob@example.com\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	assert.Equal(t, want, string(rec.Body))
}

func TestEncodeEventConvertsToUTC(t *testing.T) {
	c := New(ident.NewSequence("evt"))
	berlin := time.FixedZone("CET", 3600)
	e := meeting()
	e.Start = time.Date(2024, 3, 15, 11, 0, 0, 500, berlin)
	e.End = time.Date(2024, 3, 15, 12, 30, 0, 0, berlin)

	rec, err := c.EncodeEvent(e)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Body), "DTSTART:20240315T100000Z\r\n")
	assert.Contains(t, string(rec.Body), "DTEND:20240315T113000Z\r\n")
}

func TestEncodeEventEscapesText(t *testing.T) {
	c := New(nil)
	e := meeting()
	e.Summary = `Plan; review, and C:\temp`
	e.Description = "line one\nline two"

	rec, err := c.EncodeEvent(e)
	require.NoError(t, err)

	body := string(rec.Body)
	assert.Contains(t, body, `SUMMARY:Plan\; review\, and C:\\temp`+"\r\n")
	assert.Contains(t, body, `DESCRIPTION:line one\nline two`+"\r\n")
	assert.NotContains(t, body, "line one\nline two")
}

func TestEncodeEventValidation(t *testing.T) {
	c := New(ident.NewSequence("evt"))
	_, err := c.EncodeEvent(models.Event{Summary: "no times"})
	require.ErrorIs(t, err, models.ErrValidation)

	// A rejected event must not consume an identifier.
	rec, err := c.EncodeEvent(meeting())
	require.NoError(t, err)
	assert.Equal(t, "evt-1", rec.UID)

	_, err = c.EncodeEventWithUID("", meeting())
	assert.Error(t, err)
}

func TestEncodeEventFreshUIDPerCall(t *testing.T) {
	c := New(nil)
	a, err := c.EncodeEvent(meeting())
	require.NoError(t, err)
	b, err := c.EncodeEvent(meeting())
	require.NoError(t, err)

	assert.NotEqual(t, a.UID, b.UID)
	assert.NotEqual(t, string(a.Body), string(b.Body))

	// Apart from the UID line, the records are identical.
	assert.Equal(t,
		strings.Replace(string(a.Body), a.UID, "X", 1),
		strings.Replace(string(b.Body), b.UID, "X", 1))
}

func TestEncodeEventWithUIDIsDeterministic(t *testing.T) {
	c := New(nil)
	a, err := c.EncodeEventWithUID("fixed", meeting())
	require.NoError(t, err)
	b, err := c.EncodeEventWithUID("fixed", meeting())
	require.NoError(t, err)
	assert.Equal(t, a.Body, b.Body)
}

func assertEventsEqual(t *testing.T, want, got models.Event) {
	t.Helper()
	assert.True(t, want.Start.Equal(got.Start), "start: want %v, got %v", want.Start, got.Start)
	assert.True(t, want.End.Equal(got.End), "end: want %v, got %v", want.End, got.End)
	want.Start, want.End, want.UID = time.Time{}, time.Time{}, ""
	got.Start, got.End, got.UID = time.Time{}, time.Time{}, ""
	assert.Equal(t, want, got)
}

func TestEventRoundTrip(t *testing.T) {
	tricky := []string{
		"plain",
		"comma, separated, list",
		"semi;colon;separated",
		`back\slash and \n literal`,
		"multi\nline\ntext",
		"unicode ✓ ünïcödé 日本語",
		strings.TrimSpace(strings.Repeat("long text that must be folded ", 10)),
		`all of them: ,;\` + "\n" + `end`,
	}

	c := New(nil)
	for _, s := range tricky {
		t.Run(s[:min(len(s), 20)], func(t *testing.T) {
			e := models.Event{
				Summary:     s,
				Description: s,
				Start:       march15,
				End:         march15.Add(90 * time.Minute),
				Location:    s,
				Notes:       s,
				Participants: []models.Participant{
					{Email: "jane@example.com", Name: s},
					{Email: "bob@example.com"},
				},
			}

			rec, err := c.EncodeEvent(e)
			require.NoError(t, err)

			got, ok := DecodeEvent(rec.Body)
			require.True(t, ok)
			assert.Equal(t, rec.UID, got.UID)
			assertEventsEqual(t, e, got)
		})
	}
}

func TestEncodeEventInvalidUTF8(t *testing.T) {
	e := meeting()
	e.Summary = "x" + strings.Repeat("\x80", 100)
	e.Participants = []models.Participant{{Email: "jane@example.com", Name: strings.Repeat("\xff", 80)}}

	done := make(chan error, 1)
	go func() {
		_, err := New(nil).EncodeEvent(e)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("EncodeEvent did not return")
	}
}

func TestAttendeeNameWithQuotes(t *testing.T) {
	e := meeting()
	e.Participants = []models.Participant{{Email: "bob@example.com", Name: `Robert "Bob" Smith`}}

	rec, err := New(nil).EncodeEvent(e)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Body), `CN=Robert ^'Bob^' Smith:mailto:bob@example.com`)

	got, ok := DecodeEvent(rec.Body)
	require.True(t, ok)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, `Robert "Bob" Smith`, got.Participants[0].Name)
}

func TestEventRoundTripMinimal(t *testing.T) {
	rec, err := New(nil).EncodeEvent(meeting())
	require.NoError(t, err)

	got, ok := DecodeEvent(rec.Body)
	require.True(t, ok)
	assertEventsEqual(t, meeting(), got)
	assert.Empty(t, got.Participants)
}

func TestDecodeEventsMalformed(t *testing.T) {
	inputs := map[string]string{
		"empty":        "",
		"whitespace":   "\r\n\r\n",
		"garbage":      "this is not a calendar",
		"vcard":        "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Jane\r\nEND:VCARD\r\n",
		"unterminated": "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nSUMMARY:x\r\n",
		"broken line":  "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:a\r\nno colon here\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Empty(t, DecodeEvents([]byte(in)))
				_, ok := DecodeEvent([]byte(in))
				assert.False(t, ok)
			})
		})
	}
}

func TestDecodeEventPartial(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Other//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:abc\r\n" +
		"SUMMARY:Only a summary\r\n" +
		"DTSTART:not-a-date\r\n" +
		"ATTENDEE;CN=\"Doe, John\":MAILTO:john@example.com\r\n" +
		"X-ALT-DESC;FMTTYPE=text/html:<b>ignored</b>\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	e, ok := DecodeEvent([]byte(in))
	require.True(t, ok)
	assert.Equal(t, "abc", e.UID)
	assert.Equal(t, "Only a summary", e.Summary)
	assert.True(t, e.Start.IsZero())
	assert.True(t, e.End.IsZero())
	assert.Empty(t, e.Notes)
	assert.Equal(t, []models.Participant{{Email: "john@example.com", Name: "Doe, John"}}, e.Participants)
}

func TestDecodeEventsMultiple(t *testing.T) {
	c := New(ident.NewSequence("evt"))
	a, err := c.EncodeEvent(meeting())
	require.NoError(t, err)
	second := meeting()
	second.Summary = "Follow-up"
	b, err := c.EncodeEvent(second)
	require.NoError(t, err)

	events := DecodeEvents(append(append([]byte{}, a.Body...), b.Body...))
	require.Len(t, events, 2)
	assert.Equal(t, "evt-1", events[0].UID)
	assert.Equal(t, "Follow-up", events[1].Summary)
}

func TestEventFromComponent(t *testing.T) {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, "uid-1")
	ve.Props.SetText(ical.PropSummary, "Standup")
	ve.Props.SetDateTime(ical.PropDateTimeStart, march15)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, march15.Add(15*time.Minute))

	e := EventFromComponent(ve)
	assert.Equal(t, "uid-1", e.UID)
	assert.Equal(t, "Standup", e.Summary)
	assert.True(t, march15.Equal(e.Start))
	assert.True(t, march15.Add(15*time.Minute).Equal(e.End))
}
