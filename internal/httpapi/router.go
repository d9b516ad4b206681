package httpapi

import (
	"log/slog"
	"net/http"

	"davbridge/internal/httpapi/middleware"
)

// RouterDeps holds everything the router wires together.
type RouterDeps struct {
	Logger   *slog.Logger
	Records  *RecordHandler
	Webhooks *WebhookHandler
	Health   *HealthHandler
	Limiter  *middleware.RateLimiter
	APIKeys  []string
}

// NewRouter builds the HTTP handler with the full middleware stack.
func NewRouter(d RouterDeps) http.Handler {
	protected := middleware.Chain(d.Limiter.Limit, middleware.APIKey(d.APIKeys))
	limited := middleware.Chain(d.Limiter.Limit)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.Health.Live)
	mux.HandleFunc("GET /ready", d.Health.Ready)
	mux.Handle("GET /freebusy", limited(http.HandlerFunc(d.Records.FreeBusy)))

	routes := map[string]http.HandlerFunc{
		"POST /events":           d.Records.CreateEvent,
		"GET /events":            d.Records.ListEvents,
		"GET /events/{uid}":      d.Records.GetEvent,
		"PUT /events/{uid}":      d.Records.UpdateEvent,
		"DELETE /events/{uid}":   d.Records.DeleteEvent,
		"POST /contacts":         d.Records.CreateContact,
		"GET /contacts/{uid}":    d.Records.GetContact,
		"PUT /contacts/{uid}":    d.Records.UpdateContact,
		"DELETE /contacts/{uid}": d.Records.DeleteContact,
		"POST /webhooks":         d.Webhooks.Register,
		"GET /webhooks":          d.Webhooks.List,
		"DELETE /webhooks/{id}":  d.Webhooks.Remove,
	}
	for pattern, h := range routes {
		mux.Handle(pattern, protected(h))
	}

	return middleware.Chain(
		middleware.RequestID,
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
	)(mux)
}
