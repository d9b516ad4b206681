package bridge

import (
	"context"
	"time"

	"davbridge/internal/codec"
	"davbridge/internal/models"
	"davbridge/internal/webhook"
)

// CreateContact stores a new contact under a freshly generated UID.
func (b *Bridge) CreateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	rec, err := b.codec.EncodeContact(c)
	if err != nil {
		return models.Contact{}, err
	}
	path, err := b.store.ContactPath(rec.UID)
	if err != nil {
		return models.Contact{}, err
	}
	if err := b.write(ctx, path, rec); err != nil {
		return models.Contact{}, err
	}

	c = normalizeContact(rec.UID, c)
	b.logger.Info("Created contact", "uid", c.UID)
	b.notify(ctx, webhook.ContactCreated, c.UID, c)
	return c, nil
}

// GetContact reads and decodes the contact stored under uid.
func (b *Bridge) GetContact(ctx context.Context, uid string) (models.Contact, error) {
	if err := checkUID(uid); err != nil {
		return models.Contact{}, err
	}
	path, err := b.store.ContactPath(uid)
	if err != nil {
		return models.Contact{}, err
	}
	body, err := b.read(ctx, path)
	if err != nil {
		return models.Contact{}, err
	}

	c, ok := codec.DecodeContact(body)
	if !ok {
		b.logger.Warn("Stored contact could not be decoded", "uid", uid)
		return models.Contact{}, ErrNotFound
	}
	if c.UID == "" {
		c.UID = uid
	}
	return c, nil
}

// UpdateContact replaces an existing contact, keeping its UID.
func (b *Bridge) UpdateContact(ctx context.Context, uid string, c models.Contact) (models.Contact, error) {
	if err := checkUID(uid); err != nil {
		return models.Contact{}, err
	}
	if err := c.Validate(); err != nil {
		return models.Contact{}, err
	}
	path, err := b.store.ContactPath(uid)
	if err != nil {
		return models.Contact{}, err
	}
	if _, err := b.read(ctx, path); err != nil {
		return models.Contact{}, err
	}

	rec, err := b.codec.EncodeContactWithUID(uid, c)
	if err != nil {
		return models.Contact{}, err
	}
	if err := b.write(ctx, path, rec); err != nil {
		return models.Contact{}, err
	}

	c = normalizeContact(uid, c)
	b.logger.Info("Updated contact", "uid", uid)
	b.notify(ctx, webhook.ContactUpdated, uid, c)
	return c, nil
}

// DeleteContact removes the contact stored under uid.
func (b *Bridge) DeleteContact(ctx context.Context, uid string) error {
	if err := checkUID(uid); err != nil {
		return err
	}
	path, err := b.store.ContactPath(uid)
	if err != nil {
		return err
	}
	if err := b.remove(ctx, path); err != nil {
		return err
	}

	b.logger.Info("Deleted contact", "uid", uid)
	b.notify(ctx, webhook.ContactDeleted, uid, deletedRecord{UID: uid})
	return nil
}

func normalizeContact(uid string, c models.Contact) models.Contact {
	c.UID = uid
	if c.NextMeeting != nil {
		t := c.NextMeeting.UTC().Truncate(time.Second)
		c.NextMeeting = &t
	}
	return c
}
