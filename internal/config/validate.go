package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.DAV.validate(); err != nil {
		return fmt.Errorf("dav: %w", err)
	}
	if c.Auth.RatePerMinute <= 0 {
		return fmt.Errorf("auth.rate_per_minute must be > 0 (got %d)", c.Auth.RatePerMinute)
	}
	if c.Auth.Burst <= 0 {
		return fmt.Errorf("auth.burst must be > 0 (got %d)", c.Auth.Burst)
	}
	if c.Webhook.MaxRetries < 0 {
		return fmt.Errorf("webhook.max_retries must be >= 0 (got %d)", c.Webhook.MaxRetries)
	}
	if c.Webhook.Concurrency <= 0 {
		return fmt.Errorf("webhook.concurrency must be > 0 (got %d)", c.Webhook.Concurrency)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}

	c.Auth.APIKeys = compact(c.Auth.APIKeys)
	c.Google.CalendarIDs = compact(c.Google.CalendarIDs)
	return nil
}

func (d *DAVConfig) validate() error {
	if d.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(d.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL (got %q)", d.Endpoint)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", d.Timeout)
	}
	return nil
}

// compact trims entries and drops empty ones.
func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
