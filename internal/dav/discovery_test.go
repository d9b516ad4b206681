package dav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multistatusHeader = `<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:A="urn:ietf:params:xml:ns:carddav">`

func davResponse(href, props string) string {
	return `<D:response><D:href>` + href + `</D:href><D:propstat><D:prop>` + props +
		`</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>`
}

func calendarObject(uid, summary, start, end string) string {
	return "BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//Test//EN\nBEGIN:VEVENT\n" +
		"UID:" + uid + "\nSUMMARY:" + summary + "\nDTSTART:" + start + "\nDTEND:" + end +
		"\nEND:VEVENT\nEND:VCALENDAR\n"
}

// davServer answers the PROPFIND and REPORT requests of a single user
// with one work calendar and one address book.
type davServer struct {
	mu      sync.Mutex
	reports []string
}

func (s *davServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if user, pass, ok := r.BasicAuth(); !ok || user != "alice" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var responses []string
	switch p := strings.TrimSuffix(r.URL.Path, "/"); {
	case r.Method == "PROPFIND" && p == "/dav":
		responses = append(responses, davResponse("/dav/",
			`<D:current-user-principal><D:href>/dav/principals/alice/</D:href></D:current-user-principal>`))
	case r.Method == "PROPFIND" && p == "/dav/principals/alice":
		responses = append(responses, davResponse("/dav/principals/alice/",
			`<C:calendar-home-set><D:href>/dav/calendars/alice/</D:href></C:calendar-home-set>`+
				`<A:addressbook-home-set><D:href>/dav/cards/alice/</D:href></A:addressbook-home-set>`))
	case r.Method == "PROPFIND" && p == "/dav/calendars/alice":
		responses = append(responses,
			davResponse("/dav/calendars/alice/", `<D:resourcetype><D:collection/></D:resourcetype>`),
			davResponse("/dav/calendars/alice/personal/",
				`<D:resourcetype><D:collection/><C:calendar/></D:resourcetype><D:displayname>Personal</D:displayname>`),
			davResponse("/dav/calendars/alice/work/",
				`<D:resourcetype><D:collection/><C:calendar/></D:resourcetype><D:displayname>Work</D:displayname>`),
		)
	case r.Method == "PROPFIND" && p == "/dav/cards/alice":
		responses = append(responses,
			davResponse("/dav/cards/alice/", `<D:resourcetype><D:collection/></D:resourcetype>`),
			davResponse("/dav/cards/alice/contacts/",
				`<D:resourcetype><D:collection/><A:addressbook/></D:resourcetype><D:displayname>Contacts</D:displayname>`),
		)
	case r.Method == "REPORT" && p == "/dav/calendars/alice/work":
		s.mu.Lock()
		s.reports = append(s.reports, string(body))
		s.mu.Unlock()
		responses = append(responses,
			davResponse("/dav/calendars/alice/work/a.ics",
				`<D:getetag>"1"</D:getetag><C:calendar-data>`+
					calendarObject("a", "Standup", "20240301T090000Z", "20240301T093000Z")+`</C:calendar-data>`),
			davResponse("/dav/calendars/alice/work/b.ics",
				`<D:getetag>"2"</D:getetag><C:calendar-data>`+
					calendarObject("b", "Review", "20240301T140000Z", "20240301T150000Z")+`</C:calendar-data>`),
		)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = io.WriteString(w, multistatusHeader+strings.Join(responses, "")+`</D:multistatus>`)
}

func TestNewClientDiscoversCollections(t *testing.T) {
	srv := httptest.NewServer(&davServer{})
	defer srv.Close()

	c := newTestClient(t, srv, Options{CalendarName: "Work", AddressBookName: "Contacts"})
	assert.Equal(t, "/dav/calendars/alice/work/", c.calendarPath)
	assert.Equal(t, "/dav/cards/alice/contacts/", c.addressBookPath)

	p, err := c.EventPath("abc")
	require.NoError(t, err)
	assert.Equal(t, "/dav/calendars/alice/work/abc.ics", p)
	p, err = c.ContactPath("abc")
	require.NoError(t, err)
	assert.Equal(t, "/dav/cards/alice/contacts/abc.vcf", p)
}

func TestNewClientConfiguredPathSkipsDiscovery(t *testing.T) {
	srv := httptest.NewServer(&davServer{})
	defer srv.Close()

	c := newTestClient(t, srv, Options{CalendarName: "Missing", CalendarPath: "/dav/calendars/alice/work"})
	assert.Equal(t, "/dav/calendars/alice/work/", c.calendarPath)
}

func TestNewClientUnknownCollection(t *testing.T) {
	srv := httptest.NewServer(&davServer{})
	defer srv.Close()

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "calendar", opts: Options{CalendarName: "Holidays"}, want: "Holidays"},
		{name: "address book", opts: Options{AddressBookName: "Friends"}, want: "Friends"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Endpoint = srv.URL + "/dav"
			opts.Username, opts.Password = "alice", "secret"
			_, err := NewClient(context.Background(), discardLogger(), opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClientQueryEvents(t *testing.T) {
	server := &davServer{}
	srv := httptest.NewServer(server)
	defer srv.Close()

	c := newTestClient(t, srv, Options{CalendarName: "Work"})

	events, err := c.QueryEvents(context.Background(), march(1), march(2))
	require.NoError(t, err)
	require.Len(t, events, 2)

	var uids, summaries []string
	for _, ev := range events {
		assert.Equal(t, ical.CompEvent, ev.Name)
		uids = append(uids, ev.Props.Get(ical.PropUID).Value)
		summaries = append(summaries, ev.Props.Get(ical.PropSummary).Value)
	}
	assert.Equal(t, []string{"a", "b"}, uids)
	assert.Equal(t, []string{"Standup", "Review"}, summaries)

	require.Len(t, server.reports, 1)
	report := server.reports[0]
	assert.Contains(t, report, "calendar-query")
	assert.Contains(t, report, `name="VEVENT"`)
	assert.Contains(t, report, `start="20240301T000000Z"`)
	assert.Contains(t, report, `end="20240302T000000Z"`)
}

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(&davServer{})
	defer srv.Close()

	c := newTestClient(t, srv, Options{})
	assert.NoError(t, c.Ping(context.Background()))

	bad := newTestClient(t, srv, Options{Username: "alice", Password: "wrong"})
	assert.Error(t, bad.Ping(context.Background()))
}
