package dav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/emersion/go-webdav/carddav"
)

const (
	defaultUserAgent = "davbridge/1.0"
	maxRecordSize    = 10 << 20
)

var (
	// ErrNotFound is returned when the server answers 404 or 410.
	ErrNotFound = errors.New("dav: resource not found")
	// ErrNoCollection is returned when the operation needs a calendar or
	// address book that was neither configured nor discovered.
	ErrNoCollection = errors.New("dav: collection not configured")
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	UserAgent string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Username != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", t.UserAgent)
	return t.Transport.RoundTrip(req)
}

// Options configures a Client. A collection path, when set, takes precedence
// over discovery by display name.
type Options struct {
	Endpoint        string
	Username        string
	Password        string
	UserAgent       string
	CalendarName    string
	CalendarPath    string
	AddressBookName string
	AddressBookPath string
	Timeout         time.Duration
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is a client for the CalDAV/CardDAV server that owns all records.
type Client struct {
	caldavClient    *caldav.Client
	carddavClient   *carddav.Client
	httpClient      *http.Client
	logger          *slog.Logger
	endpoint        *url.URL
	calendarPath    string
	addressBookPath string
}

// NewClient creates a Client and resolves the calendar and address book
// collections.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*Client, error) {
	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid dav endpoint %q", opts.Endpoint)
	}
	if !strings.HasSuffix(endpoint.Path, "/") {
		endpoint.Path += "/"
	}

	transport := &customTransport{
		Username:  opts.Username,
		Password:  opts.Password,
		UserAgent: opts.UserAgent,
		Transport: opts.Transport,
	}
	if transport.UserAgent == "" {
		transport.UserAgent = defaultUserAgent
	}
	if transport.Transport == nil {
		transport.Transport = http.DefaultTransport
	}
	httpClient := &http.Client{Transport: transport, Timeout: opts.Timeout}

	caldavClient, err := caldav.NewClient(httpClient, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	carddavClient, err := carddav.NewClient(httpClient, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create carddav client: %w", err)
	}

	c := &Client{
		caldavClient:    caldavClient,
		carddavClient:   carddavClient,
		httpClient:      httpClient,
		logger:          logger,
		endpoint:        endpoint,
		calendarPath:    collectionPath(opts.CalendarPath),
		addressBookPath: collectionPath(opts.AddressBookPath),
	}

	if c.calendarPath == "" && opts.CalendarName != "" {
		logger.Info("Finding calendar", "calendarName", opts.CalendarName)
		if c.calendarPath, err = c.findCalendar(ctx, opts.CalendarName); err != nil {
			return nil, fmt.Errorf("could not find calendar '%s': %w", opts.CalendarName, err)
		}
	}
	if c.addressBookPath == "" && opts.AddressBookName != "" {
		logger.Info("Finding address book", "addressBookName", opts.AddressBookName)
		if c.addressBookPath, err = c.findAddressBook(ctx, opts.AddressBookName); err != nil {
			return nil, fmt.Errorf("could not find address book '%s': %w", opts.AddressBookName, err)
		}
	}

	logger.Info("DAV collections resolved",
		"endpoint", endpoint.String(),
		"calendar", c.calendarPath,
		"addressBook", c.addressBookPath)
	return c, nil
}

func collectionPath(p string) string {
	if p == "" {
		return ""
	}
	p = "/" + strings.Trim(p, "/") + "/"
	if p == "//" {
		return "/"
	}
	return p
}

// EventPath returns the location of the calendar object with the given UID.
func (c *Client) EventPath(uid string) (string, error) {
	if c.calendarPath == "" {
		return "", ErrNoCollection
	}
	return path.Join(c.calendarPath, uid+".ics"), nil
}

// ContactPath returns the location of the address object with the given UID.
func (c *Client) ContactPath(uid string) (string, error) {
	if c.addressBookPath == "" {
		return "", ErrNoCollection
	}
	return path.Join(c.addressBookPath, uid+".vcf"), nil
}

func (c *Client) resolve(p string) string {
	return c.endpoint.ResolveReference(&url.URL{Path: p}).String()
}

// Put writes body to p and returns the new ETag, if the server sent one.
func (c *Client) Put(ctx context.Context, p, contentType string, body []byte) (string, error) {
	c.logger.Debug("Writing record", "path", p, "contentType", contentType, "size", len(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resolve(p), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build PUT request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return resp.Header.Get("ETag"), nil
	}
	return "", fmt.Errorf("failed to write %s: unexpected status %s", p, resp.Status)
}

// Get reads the record at p.
func (c *Client) Get(ctx context.Context, p string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(p), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build GET request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("failed to read %s: unexpected status %s", p, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return body, nil
}

// Delete removes the record at p.
func (c *Client) Delete(ctx context.Context, p string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resolve(p), nil)
	if err != nil {
		return fmt.Errorf("failed to build DELETE request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return ErrNotFound
	}
	return fmt.Errorf("failed to delete %s: unexpected status %s", p, resp.Status)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRecordSize))
	resp.Body.Close()
}

// QueryEvents returns the VEVENTs overlapping [start, end). Recurring events
// are returned as stored, without expansion.
func (c *Client) QueryEvents(ctx context.Context, start, end time.Time) ([]*ical.Component, error) {
	if c.calendarPath == "" {
		return nil, ErrNoCollection
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent, Start: start.UTC(), End: end.UTC()}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var events []*ical.Component
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			events = append(events, ev.Component)
		}
	}
	c.logger.Debug("Queried calendar", "objects", len(objects), "events", len(events))
	return events, nil
}

// Ping checks that the server is reachable and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.caldavClient.FindCurrentUserPrincipal(ctx); err != nil {
		return fmt.Errorf("failed to find principal: %w", err)
	}
	return nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return collectionPath(cal.Path), nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// findAddressBook is the CardDAV counterpart of findCalendar.
func (c *Client) findAddressBook(ctx context.Context, name string) (string, error) {
	principalPath, err := c.carddavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.carddavClient.FindAddressBookHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find address book home set: %w", err)
	}

	books, err := c.carddavClient.FindAddressBooks(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find address books: %w", err)
	}

	for _, book := range books {
		if book.Name == name {
			return collectionPath(book.Path), nil
		}
	}
	return "", fmt.Errorf("no address book found with name '%s'", name)
}
