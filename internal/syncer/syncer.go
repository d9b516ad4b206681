package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"davbridge/internal/bridge"
	"davbridge/internal/google"
	"davbridge/internal/models"
)

// SyncState keeps track of which events have been imported.
// The key is the Google Event ID, and the value is the bridge UID.
type SyncState map[string]string

// EventSource yields upcoming events of one calendar.
type EventSource interface {
	UpcomingEvents(ctx context.Context, calendarID string, days int) ([]google.SourceEvent, error)
}

// EventSink receives imported events. *bridge.Bridge satisfies it.
type EventSink interface {
	CreateEvent(ctx context.Context, e models.Event) (models.Event, error)
	UpdateEvent(ctx context.Context, uid string, e models.Event) (models.Event, error)
}

// Options configures a Syncer.
type Options struct {
	CalendarIDs []string
	Days        int
	StateFile   string
	DryRun      bool
}

// Result summarises one sync cycle.
type Result struct {
	Created int
	Updated int
	Failed  int
}

// Syncer imports events from Google Calendar into the DAV calendar through the bridge.
type Syncer struct {
	logger  *slog.Logger
	sources []EventSource
	sink    EventSink
	opts    Options
	state   SyncState
}

// NewSyncer creates a new Syncer, loading previous state from opts.StateFile.
func NewSyncer(logger *slog.Logger, sources []EventSource, sink EventSink, opts Options) (*Syncer, error) {
	if len(opts.CalendarIDs) == 0 {
		opts.CalendarIDs = []string{"primary"}
	}
	if opts.Days <= 0 {
		opts.Days = 7
	}

	state, err := loadState(opts.StateFile)
	if err != nil {
		// If the file doesn't exist, we can start with an empty state.
		if os.IsNotExist(err) {
			logger.Info("No sync state file found, starting fresh.", "file", opts.StateFile)
			state = make(SyncState)
		} else {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	return &Syncer{
		logger:  logger,
		sources: sources,
		sink:    sink,
		opts:    opts,
		state:   state,
	}, nil
}

// Sync performs a full import cycle.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	s.logger.Info("Starting sync cycle.")

	var res Result
	events := s.fetchAll(ctx)
	s.logger.Info("Fetched all Google events.", "count", len(events))

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			// Keep the mappings of events created before the cancellation.
			if !s.opts.DryRun {
				if serr := s.saveState(); serr != nil {
					s.logger.Error("Failed to save sync state", "error", serr)
				}
			}
			return res, err
		}
		created, err := s.syncEvent(ctx, event)
		if err != nil {
			s.logger.Error("Failed to sync event", "id", event.ID, "summary", event.Event.Summary, "error", err)
			// Continue with the next event even if one fails.
			res.Failed++
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	if !s.opts.DryRun {
		if err := s.saveState(); err != nil {
			return res, fmt.Errorf("failed to save sync state: %w", err)
		}
	}

	s.logger.Info("Sync cycle finished.", "created", res.Created, "updated", res.Updated, "failed", res.Failed)
	return res, nil
}

// fetchAll retrieves events from every source and configured calendar.
func (s *Syncer) fetchAll(ctx context.Context) []google.SourceEvent {
	var all []google.SourceEvent
	for _, source := range s.sources {
		for _, calID := range s.opts.CalendarIDs {
			events, err := source.UpcomingEvents(ctx, calID, s.opts.Days)
			if err != nil {
				s.logger.Error("Could not fetch events for a google calendar", "calendarID", calID, "error", err)
				continue
			}
			all = append(all, events...)
		}
	}
	return all
}

// syncEvent creates the event, or updates it when it was imported before.
// It reports whether a new record was created.
func (s *Syncer) syncEvent(ctx context.Context, event google.SourceEvent) (bool, error) {
	if uid, exists := s.state[event.ID]; exists {
		if s.opts.DryRun {
			s.logger.Info("[DRY RUN] Would update event", "uid", uid, "summary", event.Event.Summary)
			return false, nil
		}
		_, err := s.sink.UpdateEvent(ctx, uid, event.Event)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, bridge.ErrNotFound) {
			return false, err
		}
		// Removed on the DAV side since the last cycle; import it again.
		s.logger.Info("Imported event disappeared, recreating.", "uid", uid)
		delete(s.state, event.ID)
	}

	if s.opts.DryRun {
		s.logger.Info("[DRY RUN] Would create new event", "summary", event.Event.Summary, "start", event.Event.Start)
		return true, nil
	}

	created, err := s.sink.CreateEvent(ctx, event.Event)
	if err != nil {
		return false, err
	}

	// If successful, update the state.
	s.state[event.ID] = created.UID
	return true, nil
}

// loadState loads the sync state from the JSON file.
func loadState(path string) (SyncState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState saves the current sync state to the JSON file.
func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(s.opts.StateFile, data, 0o644)
}
