// Package config resolves CareRouter settings from defaults, an optional YAML file, the
// .env file and the process environment. Command-line flags are applied on top by the
// caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/BTreeMap/CareRouter/internal/util"
)

// Default configuration constants
const (
	// DefaultDBFileName is the default SQLite file for conversation records
	DefaultDBFileName = "carerouter.db"
	DefaultAPIAddr    = ":8080"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxUsers   = 10000
	DefaultStateTTL   = 24 * time.Hour
	// DefaultPruneSchedule runs the record retention job once a day
	DefaultPruneSchedule = "@daily"
)

// Generation backends.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendNone   = "none"
)

var (
	ErrUnknownBackend      = errors.New("unknown generation backend")
	ErrUnknownStateBackend = errors.New("unknown state backend")
	ErrMissingAPIKey       = errors.New("generation backend requires an API key")
	ErrMissingRedisAddr    = errors.New("redis state backend requires REDIS_ADDR")
	ErrInvalidLogLevel     = errors.New("invalid log level")
)

// Config holds the resolved settings.
type Config struct {
	Backend        string        `koanf:"backend"`
	OpenAIKey      string        `koanf:"openai_api_key"`
	OpenAIModel    string        `koanf:"openai_model"`
	GeminiKey      string        `koanf:"gemini_api_key"`
	GeminiModel    string        `koanf:"gemini_model"`
	BackendTimeout time.Duration `koanf:"backend_timeout"`

	StateBackend  string        `koanf:"state_backend"`
	StateMaxUsers int           `koanf:"state_max_users"`
	StateTTL      time.Duration `koanf:"state_ttl"`
	RedisAddr     string        `koanf:"redis_addr"`

	DatabaseURL     string        `koanf:"database_url"`
	StateDir        string        `koanf:"state_dir"`
	RecordRetention time.Duration `koanf:"record_retention"`
	PruneSchedule   string        `koanf:"prune_schedule"`

	APIAddr        string `koanf:"api_addr"`
	LabTestHandler bool   `koanf:"lab_test_handler"`
	PromptsDir     string `koanf:"prompts_dir"`
	CatalogFile    string `koanf:"catalog_file"`

	TwilioAccountSID string `koanf:"twilio_account_sid"`
	TwilioAuthToken  string `koanf:"twilio_auth_token"`
	TwilioFrom       string `koanf:"twilio_from_number"`
	TwilioWebhookURL string `koanf:"twilio_webhook_url"`

	LogLevel string `koanf:"log_level"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Backend:        BackendNone,
		BackendTimeout: DefaultTimeout,
		StateBackend:   "memory",
		StateMaxUsers:  DefaultMaxUsers,
		StateTTL:       DefaultStateTTL,
		APIAddr:        DefaultAPIAddr,
		PruneSchedule:  DefaultPruneSchedule,
		LogLevel:       "info",
	}
}

// Load resolves the configuration. path names an optional YAML file; when empty,
// CARE_CONFIG_FILE is consulted.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil {
		slog.Debug("config.Load: no .env file loaded", "error", err)
	} else {
		slog.Debug("config.Load: loaded .env file")
	}

	if path == "" {
		path = os.Getenv("CARE_CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	slog.Debug("config.Load: configuration resolved",
		"backend", cfg.Backend,
		"state_backend", cfg.StateBackend,
		"database_url_set", cfg.DatabaseURL != "",
		"api_addr", cfg.APIAddr,
		"lab_test_handler", cfg.LabTestHandler,
		"twilio_enabled", cfg.TwilioEnabled())
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	slog.Debug("config.loadFile: loaded config file", "path", path)
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Backend, "CARE_BACKEND")
	setString(&cfg.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIModel, "OPENAI_MODEL")
	setString(&cfg.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	cfg.BackendTimeout = util.ParseDurationEnv("CARE_BACKEND_TIMEOUT", cfg.BackendTimeout)

	setString(&cfg.StateBackend, "CARE_STATE_BACKEND")
	cfg.StateMaxUsers = util.ParseIntEnv("CARE_STATE_MAX_USERS", cfg.StateMaxUsers)
	cfg.StateTTL = util.ParseDurationEnv("CARE_STATE_TTL", cfg.StateTTL)
	setString(&cfg.RedisAddr, "REDIS_ADDR")

	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.StateDir, "CARE_STATE_DIR")
	cfg.RecordRetention = util.ParseDurationEnv("CARE_RECORD_RETENTION", cfg.RecordRetention)
	setString(&cfg.PruneSchedule, "CARE_PRUNE_SCHEDULE")

	setString(&cfg.APIAddr, "API_ADDR")
	cfg.LabTestHandler = util.ParseBoolEnv("CARE_LAB_TEST_HANDLER", cfg.LabTestHandler)
	setString(&cfg.PromptsDir, "CARE_PROMPTS_DIR")
	setString(&cfg.CatalogFile, "CARE_CATALOG_FILE")

	setString(&cfg.TwilioAccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.TwilioAuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.TwilioFrom, "TWILIO_FROM_NUMBER")
	setString(&cfg.TwilioWebhookURL, "TWILIO_WEBHOOK_URL")

	setString(&cfg.LogLevel, "CARE_LOG_LEVEL")
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("%s: %w", BackendOpenAI, ErrMissingAPIKey)
		}
	case BackendGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("%s: %w", BackendGemini, ErrMissingAPIKey)
		}
	case BackendNone, "":
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend)
	}

	switch strings.ToLower(c.StateBackend) {
	case "", "memory", "lru":
	case "redis":
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownStateBackend, c.StateBackend)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RecordsDSN is the conversation-record database. An explicit DATABASE_URL wins; with
// only a state directory configured the records go to a SQLite file inside it. An empty
// result selects the in-memory store.
func (c Config) RecordsDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.StateDir != "" {
		return filepath.Join(c.StateDir, DefaultDBFileName)
	}
	return ""
}

// TwilioEnabled reports whether the WhatsApp channel is configured for outbound sends.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q (must be one of: debug, info, warn, error)", ErrInvalidLogLevel, level)
	}
}
