package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/emersion/go-ical"

	"davbridge/internal/codec"
	"davbridge/internal/dav"
	"davbridge/internal/webhook"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidUID   = errors.New("invalid record identifier")
	ErrInvalidRange = errors.New("invalid time range")
)

// Store is the external calendar/contact server. It moves encoded records
// and knows nothing about their content.
type Store interface {
	Put(ctx context.Context, path, contentType string, body []byte) (etag string, err error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	EventPath(uid string) (string, error)
	ContactPath(uid string) (string, error)
	QueryEvents(ctx context.Context, start, end time.Time) ([]*ical.Component, error)
}

// Notifier receives a notification after every successful write.
type Notifier interface {
	Notify(ctx context.Context, n webhook.Notification)
}

// Bridge orchestrates validation, encoding, storage and notification for
// events and contacts.
type Bridge struct {
	logger   *slog.Logger
	store    Store
	codec    *codec.Codec
	notifier Notifier
	dryRun   bool
	now      func() time.Time
}

// New creates a new Bridge. notifier may be nil.
func New(logger *slog.Logger, store Store, c *codec.Codec, notifier Notifier, dryRun bool) *Bridge {
	return &Bridge{
		logger:   logger,
		store:    store,
		codec:    c,
		notifier: notifier,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// write hands a record to the store unless running dry.
func (b *Bridge) write(ctx context.Context, path string, rec codec.Record) error {
	if b.dryRun {
		b.logger.Info("[DRY RUN] Would write record", "path", path, "uid", rec.UID, "size", len(rec.Body))
		return nil
	}
	if _, err := b.store.Put(ctx, path, rec.ContentType, rec.Body); err != nil {
		return fmt.Errorf("failed to store record %s: %w", rec.UID, err)
	}
	return nil
}

// read fetches the record at path, translating a missing record to ErrNotFound.
func (b *Bridge) read(ctx context.Context, path string) ([]byte, error) {
	body, err := b.store.Get(ctx, path)
	if errors.Is(err, dav.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return body, nil
}

func (b *Bridge) remove(ctx context.Context, path string) error {
	if b.dryRun {
		b.logger.Info("[DRY RUN] Would delete record", "path", path)
		return nil
	}
	err := b.store.Delete(ctx, path)
	if errors.Is(err, dav.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (b *Bridge) notify(ctx context.Context, typ, id string, data any) {
	if b.notifier == nil {
		return
	}
	b.notifier.Notify(ctx, webhook.Notification{
		Type:      typ,
		ID:        id,
		Data:      data,
		Timestamp: b.now().UTC(),
	})
}

// checkUID rejects identifiers that could escape the collection.
func checkUID(uid string) error {
	if uid == "" || uid == "." || uid == ".." || len(uid) > 255 {
		return ErrInvalidUID
	}
	if strings.ContainsAny(uid, `/\`) || strings.ContainsFunc(uid, unicode.IsControl) {
		return ErrInvalidUID
	}
	return nil
}

func checkRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidRange)
	}
	return nil
}
