package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the bot identity and update-delivery settings.
type TelegramConfig struct {
	Token       string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminChatID int64  `yaml:"admin_chat_id" envconfig:"ADMIN_CHAT_ID"`
	RunMode     string `yaml:"run_mode" envconfig:"RUN_MODE"`
	// LongPollTimeoutSeconds tunes long polling; 0 falls back to the poller default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies how the update webhook is exposed.
type WebhookConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"WEBHOOK_URL_BASE"`
	Path    string `yaml:"path" envconfig:"WEBHOOK_URL_PATH"`
	Listen  string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port    int    `yaml:"port" envconfig:"PORT"`
}

// Addr returns the listen address for the webhook HTTP server.
func (w WebhookConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Listen, w.Port)
}

// PublicURL returns the externally visible URL Telegram should deliver updates to.
func (w WebhookConfig) PublicURL() string {
	return strings.TrimRight(w.BaseURL, "/") + w.Path
}

// PredictorConfig identifies the Vertex AI endpoint used for fare prediction.
// All three identifiers must be present for the predictor to be configured;
// otherwise every prediction fails deterministically.
type PredictorConfig struct {
	EndpointID     string `yaml:"endpoint_id" envconfig:"VERTEX_AI_ENDPOINT_ID"`
	Project        string `yaml:"project" envconfig:"VERTEX_AI_PROJECT"`
	Location       string `yaml:"location" envconfig:"VERTEX_AI_LOCATION"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"PREDICT_TIMEOUT_SECONDS"`
}

// Configured reports whether the endpoint is fully identified.
func (p PredictorConfig) Configured() bool {
	return p.EndpointID != "" && p.Project != "" && p.Location != ""
}

// Timeout returns the per-call deadline for predictions.
func (p PredictorConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ScheduleConfig points at the raw schedule data and tunes its expansion.
type ScheduleConfig struct {
	CSVPath string `yaml:"csv_path" envconfig:"SCHEDULE_CSV"`
	// SlotIntervalMinutes is the spacing of generated departures inside a
	// "HH:MM-HH:MM" slot.
	SlotIntervalMinutes int `yaml:"slot_interval_minutes" envconfig:"SLOT_INTERVAL_MINUTES"`
}

// SlotInterval returns the departure spacing as a duration.
func (s ScheduleConfig) SlotInterval() time.Duration {
	return time.Duration(s.SlotIntervalMinutes) * time.Minute
}

// StorageConfig locates the JSON files backing the durable stores.
type StorageConfig struct {
	Dir             string `yaml:"dir" envconfig:"STORE_DIR"`
	SessionsFile    string `yaml:"sessions_file" envconfig:"SESSIONS_FILE"`
	BookingsFile    string `yaml:"bookings_file" envconfig:"BOOKINGS_FILE"`
	SubscribersFile string `yaml:"subscribers_file" envconfig:"SUBSCRIBERS_FILE"`
}

// SessionsPath returns the sessions file path under Dir.
func (s StorageConfig) SessionsPath() string { return filepath.Join(s.Dir, s.SessionsFile) }

// BookingsPath returns the bookings file path under Dir.
func (s StorageConfig) BookingsPath() string { return filepath.Join(s.Dir, s.BookingsFile) }

// SubscribersPath returns the subscribers file path under Dir.
func (s StorageConfig) SubscribersPath() string { return filepath.Join(s.Dir, s.SubscribersFile) }

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile names the environment, e.g. "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook receives updates pushed by Telegram to the wire server.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls updates via long polling.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback names callback-button updates in rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage names plain message updates in rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig throttles per-user update handling. ExcludeUpdates lists
// update kinds (callback, message) that bypass the limiter.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates all settings of the booking bot.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Predictor PredictorConfig `yaml:"predictor"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides. An empty path means env-only operation.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Normalize validates required fields and fills defaults in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Telegram.Token == "" {
		return errors.New("bot token is required")
	}
	applyDefaults(cfg)
	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	return normalizeRateLimit(&cfg.RateLimit)
}

func applyDefaults(cfg *Config) {
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 8080
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/"
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		cfg.Webhook.Path = "/" + cfg.Webhook.Path
	}
	if cfg.Predictor.TimeoutSeconds <= 0 {
		cfg.Predictor.TimeoutSeconds = 15
	}
	if cfg.Schedule.CSVPath == "" {
		cfg.Schedule.CSVPath = "bus_data.csv"
	}
	if cfg.Schedule.SlotIntervalMinutes <= 0 {
		cfg.Schedule.SlotIntervalMinutes = 60
	}
	if cfg.Storage.SessionsFile == "" {
		cfg.Storage.SessionsFile = "sessions.json"
	}
	if cfg.Storage.BookingsFile == "" {
		cfg.Storage.BookingsFile = "bookings.json"
	}
	if cfg.Storage.SubscribersFile == "" {
		cfg.Storage.SubscribersFile = "subscribers.json"
	}
}

func normalizeRunMode(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "":
		mode = RunModeWebhook
	case "polling": // accepted alias
		mode = RunModeLongpoll
	}
	switch mode {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.BaseURL) == "" {
			return errors.New("webhook.base_url is required in webhook mode")
		}
		if cfg.Webhook.Port <= 0 {
			return errors.New("webhook.port must be > 0 in webhook mode")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("unknown telegram.run_mode %q (webhook or longpoll)", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = mode
	return nil
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	for i, raw := range rl.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		if key != UpdateCallback && key != UpdateMessage {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", raw)
		}
		rl.ExcludeUpdates[i] = key
	}
	return nil
}
