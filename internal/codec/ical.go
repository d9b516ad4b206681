package codec

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"davbridge/internal/models"
)

const (
	propAltDesc     = "X-ALT-DESC"
	paramFormatType = "FMTTYPE"
	mailtoPrefix    = "mailto:"
)

// propOrder fixes the property layout of each component. Properties not
// listed are written afterwards in name order.
var propOrder = map[string][]string{
	ical.CompCalendar: {ical.PropVersion},
	ical.CompEvent: {
		ical.PropUID,
		ical.PropSummary,
		ical.PropDateTimeStart,
		ical.PropDateTimeEnd,
		ical.PropDescription,
		ical.PropLocation,
		propAltDesc,
		ical.PropAttendee,
	},
}

// EncodeEvent validates e and encodes it as a VCALENDAR with a fresh UID.
func (c *Codec) EncodeEvent(e models.Event) (Record, error) {
	if err := e.Validate(); err != nil {
		return Record{}, err
	}
	return c.encodeEvent(c.ids.NewID(), e), nil
}

// EncodeEventWithUID encodes e under an identifier assigned earlier.
func (c *Codec) EncodeEventWithUID(uid string, e models.Event) (Record, error) {
	if uid == "" {
		return Record{}, errEmptyUID
	}
	if err := e.Validate(); err != nil {
		return Record{}, err
	}
	return c.encodeEvent(uid, e), nil
}

func (c *Codec) encodeEvent(uid string, e models.Event) Record {
	cal := ical.NewCalendar()
	cal.Props.Add(newProp(ical.PropVersion, "2.0"))
	cal.Children = append(cal.Children, eventComponent(uid, e))

	var w lineWriter
	writeComponent(&w, cal.Component)
	return Record{UID: uid, Body: w.Bytes(), ContentType: ContentTypeCalendar}
}

func eventComponent(uid string, e models.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.Add(newProp(ical.PropUID, escapeText(uid)))
	ve.Props.Add(newProp(ical.PropSummary, escapeText(e.Summary)))
	ve.Props.Add(newProp(ical.PropDateTimeStart, formatUTC(e.Start)))
	ve.Props.Add(newProp(ical.PropDateTimeEnd, formatUTC(e.End)))

	if e.Description != "" {
		ve.Props.Add(newProp(ical.PropDescription, escapeText(e.Description)))
	}
	if e.Location != "" {
		ve.Props.Add(newProp(ical.PropLocation, escapeText(e.Location)))
	}
	if e.Notes != "" {
		p := newProp(propAltDesc, escapeText(e.Notes))
		p.Params.Set(paramFormatType, "text/plain")
		ve.Props.Add(p)
	}
	for _, pt := range e.Participants {
		p := newProp(ical.PropAttendee, mailtoPrefix+pt.Email)
		if pt.Name != "" {
			p.Params.Set(ical.ParamCommonName, pt.Name)
		}
		ve.Props.Add(p)
	}
	return ve
}

// newProp sets an already-escaped value, bypassing ical.Prop.SetText which
// would add a VALUE parameter to extension properties.
func newProp(name, value string) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = value
	return p
}

func writeComponent(w *lineWriter, comp *ical.Component) {
	w.writeLine("BEGIN", nil, comp.Name)

	order := propOrder[comp.Name]
	listed := make(map[string]bool, len(order))
	for _, name := range order {
		listed[name] = true
		writeProps(w, comp.Props[name])
	}

	var rest []string
	for name := range comp.Props {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		writeProps(w, comp.Props[name])
	}

	for _, child := range comp.Children {
		writeComponent(w, child)
	}
	w.writeLine("END", nil, comp.Name)
}

func writeProps(w *lineWriter, props []ical.Prop) {
	for _, p := range props {
		w.writeLine(p.Name, p.Params, p.Value)
	}
}

// DecodeEvents parses every VEVENT of every VCALENDAR in data. Parsing stops
// at the first malformed calendar; events decoded before it are kept. A
// single syntactically broken line rejects its whole calendar, unlike
// DecodeContacts which skips bad lines.
func DecodeEvents(data []byte) (events []models.Event) {
	defer func() {
		if recover() != nil {
			events = nil
		}
	}()

	dec := ical.NewDecoder(bytes.NewReader(data))
	for {
		cal, err := dec.Decode()
		if err != nil {
			return events
		}
		for _, ev := range cal.Events() {
			events = append(events, EventFromComponent(ev.Component))
		}
	}
}

// DecodeEvent returns the first event in data.
func DecodeEvent(data []byte) (models.Event, bool) {
	events := DecodeEvents(data)
	if len(events) == 0 {
		return models.Event{}, false
	}
	return events[0], true
}

// EventFromComponent maps a parsed VEVENT. Properties that fail to parse are
// left at their zero value.
func EventFromComponent(comp *ical.Component) models.Event {
	e := models.Event{
		UID:         propText(comp, ical.PropUID),
		Summary:     propText(comp, ical.PropSummary),
		Description: propText(comp, ical.PropDescription),
		Location:    propText(comp, ical.PropLocation),
		Start:       propTime(comp, ical.PropDateTimeStart),
		End:         propTime(comp, ical.PropDateTimeEnd),
	}

	for _, p := range comp.Props[propAltDesc] {
		ft := p.Params.Get(paramFormatType)
		if ft != "" && !strings.EqualFold(ft, "text/plain") {
			continue
		}
		// Extension property: go-ical knows no value type for it.
		e.Notes = unescapeText(p.Value)
		break
	}

	for _, p := range comp.Props[ical.PropAttendee] {
		email := p.Value
		if len(email) >= len(mailtoPrefix) && strings.EqualFold(email[:len(mailtoPrefix)], mailtoPrefix) {
			email = email[len(mailtoPrefix):]
		}
		if email == "" {
			continue
		}
		e.Participants = append(e.Participants, models.Participant{
			Email: email,
			Name:  unescapeParam(p.Params.Get(ical.ParamCommonName)),
		})
	}
	return e
}

func propText(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	s, err := p.Text()
	if err != nil {
		return ""
	}
	return s
}

func propTime(comp *ical.Component, name string) time.Time {
	p := comp.Props.Get(name)
	if p == nil {
		return time.Time{}
	}
	t, err := p.DateTime(time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
