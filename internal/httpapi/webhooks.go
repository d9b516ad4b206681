package httpapi

import (
	"log/slog"
	"net/http"

	"davbridge/internal/webhook"
)

// WebhookHandler serves subscription management.
type WebhookHandler struct {
	registry webhook.Registry
	log      *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(registry webhook.Registry, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{registry: registry, log: logger.With("handler", "webhooks")}
}

type subscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Register handles POST /webhooks.
func (h *WebhookHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.registry.Register(r.Context(), webhook.Subscription{
		URL:    req.URL,
		Events: req.Events,
		Secret: req.Secret,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	h.log.InfoContext(r.Context(), "webhook registered", slog.String("id", sub.ID), slog.String("url", sub.URL))
	w.Header().Set("Location", "/webhooks/"+sub.ID)
	writeJSON(w, http.StatusCreated, sub.Redacted())
}

// List handles GET /webhooks.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.registry.List(r.Context())
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	out := make([]webhook.Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

// Remove handles DELETE /webhooks/{id}.
func (h *WebhookHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.Context(), r.PathValue("id")); err != nil {
		handleError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
