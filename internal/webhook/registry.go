package webhook

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"davbridge/internal/ident"
	"davbridge/internal/models"
)

var ErrNotFound = errors.New("subscription not found")

// Subscription is a registered receiver of notifications.
type Subscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url" validate:"required,http_url"`
	Events    []string  `json:"events,omitempty" validate:"dive,oneof=event.created event.updated event.deleted contact.created contact.updated contact.deleted"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the URL and the event filter.
func (s Subscription) Validate() error {
	return models.ValidateStruct(s)
}

// Wants reports whether the subscription receives notifications of typ.
// An empty filter receives everything.
func (s Subscription) Wants(typ string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == typ {
			return true
		}
	}
	return false
}

// Redacted returns a copy safe to show to API clients.
func (s Subscription) Redacted() Subscription {
	if s.Secret != "" {
		s.Secret = "********"
	}
	return s
}

// Registry stores subscriptions.
type Registry interface {
	Register(ctx context.Context, s Subscription) (Subscription, error)
	List(ctx context.Context) ([]Subscription, error)
	Remove(ctx context.Context, id string) error
}

// MemoryRegistry keeps subscriptions in memory.
type MemoryRegistry struct {
	mu   sync.RWMutex
	ids  ident.Generator
	now  func() time.Time
	subs map[string]Subscription
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(ids ident.Generator) *MemoryRegistry {
	if ids == nil {
		ids = ident.UUID{}
	}
	return &MemoryRegistry{
		ids:  ids,
		now:  time.Now,
		subs: make(map[string]Subscription),
	}
}

// Register validates s, assigns it an ID and stores it.
func (r *MemoryRegistry) Register(_ context.Context, s Subscription) (Subscription, error) {
	if err := s.Validate(); err != nil {
		return Subscription{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.ids.NewID()
	s.CreatedAt = r.now().UTC().Truncate(time.Second)
	r.subs[s.ID] = s
	return s, nil
}

// List returns all subscriptions, oldest first.
func (r *MemoryRegistry) List(_ context.Context) ([]Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(), nil
}

// Remove deletes the subscription with the given id.
func (r *MemoryRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

// snapshot must be called with the lock held.
func (r *MemoryRegistry) snapshot() []Subscription {
	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
