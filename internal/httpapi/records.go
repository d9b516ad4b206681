package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"davbridge/internal/bridge"
	"davbridge/internal/models"
)

// recordService defines the bridge operations the record endpoints need.
type recordService interface {
	CreateEvent(ctx context.Context, e models.Event) (models.Event, error)
	GetEvent(ctx context.Context, uid string) (models.Event, error)
	UpdateEvent(ctx context.Context, uid string, e models.Event) (models.Event, error)
	DeleteEvent(ctx context.Context, uid string) error
	ListEvents(ctx context.Context, start, end time.Time) ([]models.Event, error)
	FreeBusy(ctx context.Context, start, end time.Time) ([]bridge.BusyPeriod, error)

	CreateContact(ctx context.Context, c models.Contact) (models.Contact, error)
	GetContact(ctx context.Context, uid string) (models.Contact, error)
	UpdateContact(ctx context.Context, uid string, c models.Contact) (models.Contact, error)
	DeleteContact(ctx context.Context, uid string) error
}

// RecordHandler serves the event, contact and free/busy endpoints.
type RecordHandler struct {
	svc recordService
	log *slog.Logger
}

// NewRecordHandler creates a RecordHandler.
func NewRecordHandler(svc recordService, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{svc: svc, log: logger.With("handler", "records")}
}

// CreateEvent handles POST /events.
func (h *RecordHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.Event
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	w.Header().Set("Location", "/events/"+e.UID)
	writeJSON(w, http.StatusCreated, e)
}

// GetEvent handles GET /events/{uid}.
func (h *RecordHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetEvent(r.Context(), r.PathValue("uid"))
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateEvent handles PUT /events/{uid}.
func (h *RecordHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.Event
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := h.svc.UpdateEvent(r.Context(), r.PathValue("uid"), req)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEvent handles DELETE /events/{uid}.
func (h *RecordHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), r.PathValue("uid")); err != nil {
		handleError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /events?start=&end=.
func (h *RecordHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	start, end, ok := timeWindow(w, r)
	if !ok {
		return
	}
	events, err := h.svc.ListEvents(r.Context(), start, end)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// FreeBusy handles GET /freebusy?start=&end=.
func (h *RecordHandler) FreeBusy(w http.ResponseWriter, r *http.Request) {
	start, end, ok := timeWindow(w, r)
	if !ok {
		return
	}
	busy, err := h.svc.FreeBusy(r.Context(), start, end)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"start": start.UTC(),
		"end":   end.UTC(),
		"busy":  busy,
	})
}

// CreateContact handles POST /contacts.
func (h *RecordHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req models.Contact
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.CreateContact(r.Context(), req)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	w.Header().Set("Location", "/contacts/"+c.UID)
	writeJSON(w, http.StatusCreated, c)
}

// GetContact handles GET /contacts/{uid}.
func (h *RecordHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetContact(r.Context(), r.PathValue("uid"))
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateContact handles PUT /contacts/{uid}.
func (h *RecordHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req models.Contact
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateContact(r.Context(), r.PathValue("uid"), req)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteContact handles DELETE /contacts/{uid}.
func (h *RecordHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteContact(r.Context(), r.PathValue("uid")); err != nil {
		handleError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
