package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"davbridge/internal/ident"
)

// FileRegistry is a MemoryRegistry persisted to a JSON file after every change.
type FileRegistry struct {
	*MemoryRegistry
	path    string
	logger  *slog.Logger
	persist sync.Mutex
}

// NewFileRegistry loads subscriptions from path. A missing file starts an
// empty registry.
func NewFileRegistry(logger *slog.Logger, path string, ids ident.Generator) (*FileRegistry, error) {
	r := &FileRegistry{
		MemoryRegistry: NewMemoryRegistry(ids),
		path:           path,
		logger:         logger,
	}

	subs, err := loadSubscriptions(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("No webhook state file found, starting fresh.", "file", path)
			return r, nil
		}
		return nil, fmt.Errorf("failed to load webhook state: %w", err)
	}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	logger.Info("Loaded webhook subscriptions.", "file", path, "count", len(subs))
	return r, nil
}

// Register stores s and persists the registry.
func (r *FileRegistry) Register(ctx context.Context, s Subscription) (Subscription, error) {
	r.persist.Lock()
	defer r.persist.Unlock()

	s, err := r.MemoryRegistry.Register(ctx, s)
	if err != nil {
		return Subscription{}, err
	}
	if err := r.save(); err != nil {
		return Subscription{}, err
	}
	return s, nil
}

// Remove deletes the subscription and persists the registry.
func (r *FileRegistry) Remove(ctx context.Context, id string) error {
	r.persist.Lock()
	defer r.persist.Unlock()

	if err := r.MemoryRegistry.Remove(ctx, id); err != nil {
		return err
	}
	return r.save()
}

// save replaces the state file atomically.
func (r *FileRegistry) save() error {
	r.mu.RLock()
	subs := r.snapshot()
	r.mu.RUnlock()

	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal webhook state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".webhooks-*.json")
	if err != nil {
		return fmt.Errorf("failed to save webhook state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save webhook state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save webhook state: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to save webhook state: %w", err)
	}
	return nil
}

func loadSubscriptions(path string) ([]Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var subs []Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}
