package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Rotation of file sinks; zero values fall back to lumberjack defaults.
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// KnowledgeConfig selects where topics and answers come from.
type KnowledgeConfig struct {
	Source string `yaml:"source" envconfig:"KNOWLEDGE_SOURCE"`
	Path   string `yaml:"path" envconfig:"KNOWLEDGE_PATH"`
}

// IndexConfig selects where the token index is persisted.
type IndexConfig struct {
	Backend  string `yaml:"backend" envconfig:"INDEX_BACKEND"`
	Path     string `yaml:"path" envconfig:"INDEX_PATH"`
	RedisURL string `yaml:"redis_url" envconfig:"REDIS_URL"`
	RedisKey string `yaml:"redis_key" envconfig:"INDEX_REDIS_KEY"`
}

// HealthConfig configures the liveness endpoint.
type HealthConfig struct {
	Disabled bool   `yaml:"disabled" envconfig:"HEALTH_DISABLED"`
	Listen   string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
	Port     int    `yaml:"port" envconfig:"PORT"`
	Path     string `yaml:"path" envconfig:"HEALTH_PATH"`
}

// MenuTexts overrides the fixed menu strings. Empty fields keep defaults.
type MenuTexts struct {
	Greeting    string `yaml:"greeting"`
	RootPrompt  string `yaml:"root_prompt"`
	TopicPrompt string `yaml:"topic_prompt"`
	Back        string `yaml:"back"`
	Home        string `yaml:"home"`
	NotFound    string `yaml:"not_found"`
	EmptyAnswer string `yaml:"empty_answer"`
	StartHint   string `yaml:"start_hint"`
}

// MenuConfig tunes answer delivery.
type MenuConfig struct {
	ChunkSize    int       `yaml:"chunk_size" envconfig:"ANSWER_CHUNK_SIZE"`
	ChunkPauseMS int       `yaml:"chunk_pause_ms" envconfig:"ANSWER_CHUNK_PAUSE_MS"`
	Texts        MenuTexts `yaml:"texts"`
}

// DatabaseConfig holds Postgres connection settings for the database
// knowledge source.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"

	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Defaults applied by Normalize.
const (
	DefaultKnowledgePath = "configs/knowledge.yaml"
	DefaultIndexPath     = "data/index.json"
	DefaultRedisKey      = "guidebot:index"
	DefaultHealthPort    = 8080
	DefaultHealthPath    = "/health"
	DefaultChunkPauseMS  = 500
	// MaxChunkSize is Telegram's per-message limit.
	MaxChunkSize         = 4096
)

// Config aggregates the whole application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Index     IndexConfig     `yaml:"index"`
	Health    HealthConfig    `yaml:"health"`
	Menu      MenuConfig      `yaml:"menu"`
	Database  DatabaseConfig  `yaml:"database"`
}

// LoadOptions relaxes validation for commands that never talk to Telegram.
type LoadOptions struct {
	SkipToken bool
}

// Load reads .env (when present), the optional YAML file at path and then
// the environment. Environment values win over YAML.
func Load(path string, opts ...LoadOptions) (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	var o LoadOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if err := normalize(&cfg, o); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	return normalize(cfg, LoadOptions{})
}

func normalize(cfg *Config, o LoadOptions) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" && !o.SkipToken {
		return fmt.Errorf("telegram token is required (BOT_TOKEN)")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeKnowledge(&cfg.Knowledge); err != nil {
		return err
	}
	if err := normalizeIndex(&cfg.Index); err != nil {
		return err
	}
	normalizeHealth(&cfg.Health)

	if cfg.Menu.ChunkSize < 0 || cfg.Menu.ChunkSize > MaxChunkSize {
		return fmt.Errorf("menu.chunk_size must be between 0 and %d", MaxChunkSize)
	}
	if cfg.Menu.ChunkPauseMS < 0 {
		return fmt.Errorf("menu.chunk_pause_ms must be >= 0")
	}
	if cfg.Menu.ChunkPauseMS == 0 {
		cfg.Menu.ChunkPauseMS = DefaultChunkPauseMS
	}

	if cfg.Knowledge.Source == SourcePostgres {
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when knowledge.source is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 4
		}
	}
	return nil
}

func normalizeKnowledge(k *KnowledgeConfig) error {
	k.Source = strings.ToLower(strings.TrimSpace(k.Source))
	switch k.Source {
	case "", SourceFile:
		k.Source = SourceFile
		if strings.TrimSpace(k.Path) == "" {
			k.Path = DefaultKnowledgePath
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("invalid knowledge.source %q; allowed: file, postgres", k.Source)
	}
	return nil
}

func normalizeIndex(ix *IndexConfig) error {
	ix.Backend = strings.ToLower(strings.TrimSpace(ix.Backend))
	switch ix.Backend {
	case "", BackendFile:
		ix.Backend = BackendFile
		if strings.TrimSpace(ix.Path) == "" {
			ix.Path = DefaultIndexPath
		}
	case BackendRedis:
		if strings.TrimSpace(ix.RedisURL) == "" {
			return fmt.Errorf("index.redis_url is required when index.backend is 'redis'")
		}
		if strings.TrimSpace(ix.RedisKey) == "" {
			ix.RedisKey = DefaultRedisKey
		}
	case BackendNone:
	default:
		return fmt.Errorf("invalid index.backend %q; allowed: file, redis, none", ix.Backend)
	}
	return nil
}

func normalizeHealth(h *HealthConfig) {
	if h.Port <= 0 {
		h.Port = DefaultHealthPort
	}
	h.Path = strings.TrimSpace(h.Path)
	if h.Path == "" {
		h.Path = DefaultHealthPath
	}
	if !strings.HasPrefix(h.Path, "/") {
		h.Path = "/" + h.Path
	}
}
