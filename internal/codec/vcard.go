package codec

import (
	"sort"
	"strings"

	"github.com/emersion/go-vcard"

	"davbridge/internal/models"
)

const (
	vcardBegin       = "VCARD"
	vcardVersion     = "4.0"
	fieldNextMeeting = "X-NEXT-MEETING"
)

var cardFieldOrder = []string{
	vcard.FieldVersion,
	vcard.FieldUID,
	vcard.FieldFormattedName,
	vcard.FieldName,
	vcard.FieldEmail,
	vcard.FieldTelephone,
	vcard.FieldOrganization,
	fieldNextMeeting,
	vcard.FieldNote,
}

// EncodeContact validates ct and encodes it as a vCard 4.0 record with a
// fresh UID.
func (c *Codec) EncodeContact(ct models.Contact) (Record, error) {
	if err := ct.Validate(); err != nil {
		return Record{}, err
	}
	return c.encodeContact(c.ids.NewID(), ct), nil
}

// EncodeContactWithUID encodes ct under an identifier assigned earlier.
func (c *Codec) EncodeContactWithUID(uid string, ct models.Contact) (Record, error) {
	if uid == "" {
		return Record{}, errEmptyUID
	}
	if err := ct.Validate(); err != nil {
		return Record{}, err
	}
	return c.encodeContact(uid, ct), nil
}

func (c *Codec) encodeContact(uid string, ct models.Contact) Record {
	var w lineWriter
	writeCard(&w, contactCard(uid, ct))
	return Record{UID: uid, Body: w.Bytes(), ContentType: ContentTypeVCard}
}

// contactCard builds the card with escaped field values.
func contactCard(uid string, ct models.Contact) vcard.Card {
	card := make(vcard.Card)
	card.Add(vcard.FieldVersion, &vcard.Field{Value: vcardVersion})
	card.Add(vcard.FieldUID, &vcard.Field{Value: escapeText(uid)})
	card.Add(vcard.FieldFormattedName, &vcard.Field{Value: escapeText(ct.FullName())})
	card.Add(vcard.FieldName, &vcard.Field{Value: joinStructured(ct.LastName, ct.FirstName, "", "", "")})
	card.Add(vcard.FieldEmail, &vcard.Field{Value: escapeText(ct.Email)})

	if ct.WorkPhone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  escapeText(ct.WorkPhone),
			Params: vcard.Params{vcard.ParamType: {vcard.TypeWork}},
		})
	}
	if ct.MobilePhone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  escapeText(ct.MobilePhone),
			Params: vcard.Params{vcard.ParamType: {vcard.TypeCell}},
		})
	}
	if ct.Organization != "" {
		card.Add(vcard.FieldOrganization, &vcard.Field{Value: escapeText(ct.Organization)})
	}
	if ct.NextMeeting != nil && !ct.NextMeeting.IsZero() {
		card.Add(fieldNextMeeting, &vcard.Field{Value: formatUTC(*ct.NextMeeting)})
	}
	if ct.Notes != "" {
		card.Add(vcard.FieldNote, &vcard.Field{Value: escapeText(ct.Notes)})
	}
	return card
}

func writeCard(w *lineWriter, card vcard.Card) {
	w.writeLine("BEGIN", nil, vcardBegin)

	listed := make(map[string]bool, len(cardFieldOrder))
	for _, name := range cardFieldOrder {
		listed[name] = true
		writeFields(w, name, card[name])
	}

	var rest []string
	for name := range card {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		writeFields(w, name, card[name])
	}

	w.writeLine("END", nil, vcardBegin)
}

func writeFields(w *lineWriter, name string, fields []*vcard.Field) {
	for _, f := range fields {
		key := name
		if f.Group != "" {
			key = f.Group + "." + name
		}
		w.writeLine(key, f.Params, f.Value)
	}
}

// DecodeContacts parses every VCARD in data. Lines that are not valid
// content lines are skipped, and cards without a matching END are dropped.
func DecodeContacts(data []byte) []models.Contact {
	var (
		contacts []models.Contact
		card     vcard.Card
	)
	for _, line := range unfoldLines(data) {
		cl, ok := parseContentLine(line)
		if !ok {
			continue
		}
		switch {
		case cl.Name == "BEGIN" && strings.EqualFold(cl.Value, vcardBegin):
			card = make(vcard.Card)
		case cl.Name == "END" && strings.EqualFold(cl.Value, vcardBegin):
			if card != nil {
				contacts = append(contacts, ContactFromCard(card))
			}
			card = nil
		case card != nil:
			// Values stay escaped so structured fields can be split first.
			card.Add(cl.Name, &vcard.Field{Value: cl.Value, Params: cl.Params, Group: cl.Group})
		}
	}
	return contacts
}

// DecodeContact returns the first contact in data.
func DecodeContact(data []byte) (models.Contact, bool) {
	contacts := DecodeContacts(data)
	if len(contacts) == 0 {
		return models.Contact{}, false
	}
	return contacts[0], true
}

// ContactFromCard maps a card whose field values are still escaped.
func ContactFromCard(card vcard.Card) models.Contact {
	ct := models.Contact{
		UID:   fieldText(card, vcard.FieldUID),
		Email: fieldText(card, vcard.FieldEmail),
		Notes: fieldText(card, vcard.FieldNote),
	}

	if n := card.Get(vcard.FieldName); n != nil {
		parts := splitStructured(n.Value)
		ct.LastName = unescapeText(parts[0])
		if len(parts) > 1 {
			ct.FirstName = unescapeText(parts[1])
		}
	}
	if ct.FirstName == "" && ct.LastName == "" {
		fn := fieldText(card, vcard.FieldFormattedName)
		first, last, _ := strings.Cut(fn, " ")
		ct.FirstName, ct.LastName = first, last
	}

	if org := card.Get(vcard.FieldOrganization); org != nil {
		ct.Organization = unescapeText(splitStructured(org.Value)[0])
	}

	for _, f := range card[vcard.FieldTelephone] {
		number := telephoneNumber(f)
		switch {
		case hasType(f, vcard.TypeWork) && ct.WorkPhone == "":
			ct.WorkPhone = number
		case (hasType(f, vcard.TypeCell) || hasType(f, "mobile")) && ct.MobilePhone == "":
			ct.MobilePhone = number
		}
	}

	if f := card.Get(fieldNextMeeting); f != nil {
		if t, ok := parseTimestamp(f.Value); ok {
			ct.NextMeeting = &t
		}
	}
	return ct
}

func fieldText(card vcard.Card, name string) string {
	f := card.Get(name)
	if f == nil {
		return ""
	}
	return unescapeText(f.Value)
}

// telephoneNumber strips the tel: scheme from URI-valued TEL fields.
func telephoneNumber(f *vcard.Field) string {
	for _, v := range f.Params["VALUE"] {
		if strings.EqualFold(v, "uri") {
			return strings.TrimPrefix(strings.TrimPrefix(f.Value, "tel:"), "TEL:")
		}
	}
	return unescapeText(f.Value)
}

// hasType matches TYPE parameters, including comma-joined lists.
func hasType(f *vcard.Field, typ string) bool {
	for _, v := range f.Params[vcard.ParamType] {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), typ) {
				return true
			}
		}
	}
	return false
}
