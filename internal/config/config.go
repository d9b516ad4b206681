package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DAV     DAVConfig     `yaml:"dav"`
	Auth    AuthConfig    `yaml:"auth"`
	Webhook WebhookConfig `yaml:"webhook"`
	Log     LogConfig     `yaml:"log"`
	Google  GoogleConfig  `yaml:"google"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DAVConfig holds the CalDAV/CardDAV server connection.
type DAVConfig struct {
	Endpoint        string        `yaml:"endpoint"          env:"DAV_ENDPOINT"`
	Username        string        `yaml:"username"          env:"DAV_USERNAME"`
	Password        string        `yaml:"password"          env:"DAV_PASSWORD"`
	CalendarName    string        `yaml:"calendar_name"     env:"DAV_CALENDAR_NAME"`
	CalendarPath    string        `yaml:"calendar_path"     env:"DAV_CALENDAR_PATH"`
	AddressBookName string        `yaml:"addressbook_name"  env:"DAV_ADDRESSBOOK_NAME"`
	AddressBookPath string        `yaml:"addressbook_path"  env:"DAV_ADDRESSBOOK_PATH"`
	UserAgent       string        `yaml:"user_agent"        env:"DAV_USER_AGENT"        env-default:"davbridge/1.0"`
	Timeout         time.Duration `yaml:"timeout"           env:"DAV_TIMEOUT"           env-default:"30s"`
	DryRun          bool          `yaml:"dry_run"           env:"DAV_DRY_RUN"           env-default:"false"`
}

// AuthConfig holds API key authentication and rate limiting.
type AuthConfig struct {
	APIKeys       []string `yaml:"api_keys"        env:"AUTH_API_KEYS"        env-separator:","`
	RatePerMinute int      `yaml:"rate_per_minute" env:"AUTH_RATE_PER_MINUTE" env-default:"120"`
	Burst         int      `yaml:"burst"           env:"AUTH_BURST"           env-default:"20"`
}

// WebhookConfig holds notification delivery settings.
type WebhookConfig struct {
	Timeout     time.Duration `yaml:"timeout"     env:"WEBHOOK_TIMEOUT"     env-default:"10s"`
	MaxRetries  int           `yaml:"max_retries" env:"WEBHOOK_MAX_RETRIES" env-default:"3"`
	Concurrency int           `yaml:"concurrency" env:"WEBHOOK_CONCURRENCY" env-default:"4"`
	StateFile   string        `yaml:"state_file"  env:"WEBHOOK_STATE_FILE"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// GoogleConfig holds the Google Calendar import settings.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"     env:"GOOGLE_CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenDir     string   `yaml:"token_dir"     env:"GOOGLE_TOKEN_DIR"     env-default:"."`
	CalendarIDs  []string `yaml:"calendar_ids"  env:"GOOGLE_CALENDAR_IDS"  env-separator:","`
	Days         int      `yaml:"days"          env:"GOOGLE_IMPORT_DAYS"   env-default:"7"`
	StateFile    string   `yaml:"state_file"    env:"GOOGLE_STATE_FILE"    env-default:"sync-state.json"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
