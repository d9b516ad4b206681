package bridge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"davbridge/internal/codec"
	"davbridge/internal/models"
	"davbridge/internal/webhook"
)

// deletedRecord is the notification payload for deletions.
type deletedRecord struct {
	UID string `json:"uid"`
}

// CreateEvent stores a new event under a freshly generated UID.
func (b *Bridge) CreateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	rec, err := b.codec.EncodeEvent(e)
	if err != nil {
		return models.Event{}, err
	}
	if err := b.putEvent(ctx, rec); err != nil {
		return models.Event{}, err
	}

	e = normalizeEvent(rec.UID, e)
	b.logger.Info("Created event", "uid", e.UID, "summary", e.Summary)
	b.notify(ctx, webhook.EventCreated, e.UID, e)
	return e, nil
}

// GetEvent reads and decodes the event stored under uid.
func (b *Bridge) GetEvent(ctx context.Context, uid string) (models.Event, error) {
	if err := checkUID(uid); err != nil {
		return models.Event{}, err
	}
	path, err := b.store.EventPath(uid)
	if err != nil {
		return models.Event{}, err
	}
	body, err := b.read(ctx, path)
	if err != nil {
		return models.Event{}, err
	}

	e, ok := codec.DecodeEvent(body)
	if !ok {
		b.logger.Warn("Stored event could not be decoded", "uid", uid)
		return models.Event{}, ErrNotFound
	}
	if e.UID == "" {
		e.UID = uid
	}
	return e, nil
}

// UpdateEvent replaces an existing event, keeping its UID.
func (b *Bridge) UpdateEvent(ctx context.Context, uid string, e models.Event) (models.Event, error) {
	if err := checkUID(uid); err != nil {
		return models.Event{}, err
	}
	if err := e.Validate(); err != nil {
		return models.Event{}, err
	}
	path, err := b.store.EventPath(uid)
	if err != nil {
		return models.Event{}, err
	}
	if _, err := b.read(ctx, path); err != nil {
		return models.Event{}, err
	}

	rec, err := b.codec.EncodeEventWithUID(uid, e)
	if err != nil {
		return models.Event{}, err
	}
	if err := b.write(ctx, path, rec); err != nil {
		return models.Event{}, err
	}

	e = normalizeEvent(uid, e)
	b.logger.Info("Updated event", "uid", uid)
	b.notify(ctx, webhook.EventUpdated, uid, e)
	return e, nil
}

// DeleteEvent removes the event stored under uid.
func (b *Bridge) DeleteEvent(ctx context.Context, uid string) error {
	if err := checkUID(uid); err != nil {
		return err
	}
	path, err := b.store.EventPath(uid)
	if err != nil {
		return err
	}
	if err := b.remove(ctx, path); err != nil {
		return err
	}

	b.logger.Info("Deleted event", "uid", uid)
	b.notify(ctx, webhook.EventDeleted, uid, deletedRecord{UID: uid})
	return nil
}

// ListEvents returns the events overlapping [start, end), ordered by start.
func (b *Bridge) ListEvents(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	comps, err := b.store.QueryEvents(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]models.Event, 0, len(comps))
	for _, comp := range comps {
		events = append(events, codec.EventFromComponent(comp))
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

func (b *Bridge) putEvent(ctx context.Context, rec codec.Record) error {
	path, err := b.store.EventPath(rec.UID)
	if err != nil {
		return err
	}
	return b.write(ctx, path, rec)
}

// normalizeEvent returns e as it reads back from its record.
func normalizeEvent(uid string, e models.Event) models.Event {
	e.UID = uid
	e.Start = e.Start.UTC().Truncate(time.Second)
	e.End = e.End.UTC().Truncate(time.Second)
	return e
}
