package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// Delivery headers.
const (
	HeaderSignature = "X-Davbridge-Signature"
	HeaderEvent     = "X-Davbridge-Event"
)

// DispatcherOptions tunes delivery.
type DispatcherOptions struct {
	MaxRetries      int
	Concurrency     int
	InitialInterval time.Duration
	UserAgent       string
}

// Dispatcher posts notifications to every matching subscription.
type Dispatcher struct {
	registry Registry
	client   *http.Client
	logger   *slog.Logger
	opts     DispatcherOptions
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. The client's timeout bounds each attempt.
func NewDispatcher(logger *slog.Logger, registry Registry, client *http.Client, opts DispatcherOptions) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "davbridge-webhook/1.0"
	}
	return &Dispatcher{
		registry: registry,
		client:   client,
		logger:   logger,
		opts:     opts,
	}
}

// Notify delivers n in the background. Failures are logged only; the
// caller's cancellation does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Deliver(ctx, n); err != nil {
			d.logger.Warn("Webhook delivery failed", "type", n.Type, "id", n.ID, "error", err)
		}
	}()
}

// Wait blocks until every background delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver posts n to every subscription that wants it and returns the
// joined delivery errors.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) error {
	subs, err := d.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for _, sub := range subs {
		if !sub.Wants(n.Type) {
			continue
		}
		g.Go(func() error {
			if err := d.send(ctx, sub, n.Type, body); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
				mu.Unlock()
				return nil
			}
			d.logger.Debug("Webhook delivered", "subscription", sub.ID, "type", n.Type)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// send posts body to one subscriber. Transport errors and 5xx responses are
// retried with exponential backoff; any other non-2xx status is final.
func (d *Dispatcher) send(ctx context.Context, sub Subscription, typ string, body []byte) error {
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", d.opts.UserAgent)
		req.Header.Set(HeaderEvent, typ)
		if sub.Secret != "" {
			req.Header.Set(HeaderSignature, Sign(sub.Secret, body))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("subscriber returned %s", resp.Status)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("subscriber returned %s", resp.Status))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.opts.MaxRetries)), ctx)
	return backoff.Retry(attempt, policy)
}

// Sign returns the signature header value of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
