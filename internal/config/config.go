// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Placeholder values used when the environment does not provide real ones.
// They let the process boot but will not work against the real platform.
const (
	DefaultAPIID         = 12345
	DefaultAPIHash       = "your_api_hash"
	DefaultBotToken      = "your_bot_token"
	DefaultSessionString = "your_session_string"
	DefaultWebhookURL    = "https://your-app.onrender.com"
	DefaultPort          = 5000
	DefaultKeepAlivePort = 8080
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token       string  `yaml:"token"`
	WebhookURL  string  `yaml:"webhook_url"`  // public base URL, the token is appended as path
	APIEndpoint string  `yaml:"api_endpoint"` // Bot API endpoint format, "%s" token then "%s" method
	Language    string  `yaml:"language"`
	SendRate    float64 `yaml:"send_rate"` // replies per second
	SendBurst   int     `yaml:"send_burst"`
}

type VoiceConfig struct {
	APIID         int    `yaml:"api_id"`
	APIHash       string `yaml:"api_hash"`
	SessionString string `yaml:"session_string"` // Telethon string session
	FFmpegPath    string `yaml:"ffmpeg_path"`
	Bitrate       string `yaml:"bitrate"`
}

type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type CatalogConfig struct {
	Providers   []string      `yaml:"providers"` // jiosaavn | youtube, tried in order
	JioSaavnURL string        `yaml:"jiosaavn_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

type KeepAliveConfig struct {
	URL      string        `yaml:"url"` // empty disables self-pinging
	Interval time.Duration `yaml:"interval"`
	Port     int           `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables command rate limiting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Voice     VoiceConfig     `yaml:"voice"`
	HTTP      HTTPConfig      `yaml:"http"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Worker    WorkerConfig    `yaml:"worker"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), then the optional YAML file at path,
// then environment overrides, then fills defaults.
// A missing YAML file is not an error: the service is usually configured
// through the environment alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if err := num("API_ID", &cfg.Voice.APIID); err != nil {
		return err
	}
	str("API_HASH", &cfg.Voice.APIHash)
	str("SESSION_STRING", &cfg.Voice.SessionString)
	str("BOT_TOKEN", &cfg.Bot.Token)
	str("WEBHOOK_URL", &cfg.Bot.WebhookURL)
	if err := num("PORT", &cfg.HTTP.Port); err != nil {
		return err
	}
	str("KEEPALIVE_URL", &cfg.KeepAlive.URL)
	if err := num("KEEPALIVE_PORT", &cfg.KeepAlive.Port); err != nil {
		return err
	}
	str("REDIS_URL", &cfg.Redis.URL)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	return nil
}

func applyDefaults(cfg *Config) {
	// platform placeholders
	if cfg.Voice.APIID == 0 {
		cfg.Voice.APIID = DefaultAPIID
	}
	if cfg.Voice.APIHash == "" {
		cfg.Voice.APIHash = DefaultAPIHash
	}
	if cfg.Voice.SessionString == "" {
		cfg.Voice.SessionString = DefaultSessionString
	}
	if cfg.Bot.Token == "" {
		cfg.Bot.Token = DefaultBotToken
	}
	if cfg.Bot.WebhookURL == "" {
		cfg.Bot.WebhookURL = DefaultWebhookURL
	}
	cfg.Bot.WebhookURL = strings.TrimRight(cfg.Bot.WebhookURL, "/")

	if cfg.Bot.APIEndpoint == "" {
		cfg.Bot.APIEndpoint = "https://api.telegram.org/bot%s/%s"
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Bot.SendRate <= 0 {
		cfg.Bot.SendRate = 25
	}
	if cfg.Bot.SendBurst <= 0 {
		cfg.Bot.SendBurst = 5
	}

	if cfg.Voice.FFmpegPath == "" {
		cfg.Voice.FFmpegPath = "ffmpeg"
	}
	if cfg.Voice.Bitrate == "" {
		cfg.Voice.Bitrate = "128k"
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = DefaultPort
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Second
	}

	if len(cfg.Catalog.Providers) == 0 {
		cfg.Catalog.Providers = []string{"jiosaavn", "youtube"}
	}
	if cfg.Catalog.JioSaavnURL == "" {
		cfg.Catalog.JioSaavnURL = "https://saavn.dev"
	}
	if cfg.Catalog.Timeout <= 0 {
		cfg.Catalog.Timeout = 15 * time.Second
	}

	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = 256
	}
	if cfg.Worker.TaskTimeout <= 0 {
		cfg.Worker.TaskTimeout = 2 * time.Minute
	}

	if cfg.KeepAlive.Interval <= 0 {
		cfg.KeepAlive.Interval = 5 * time.Minute
	}
	if cfg.KeepAlive.Port == 0 {
		cfg.KeepAlive.Port = DefaultKeepAlivePort
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 20
	}
}

// WebhookTarget is the full URL the platform should POST updates to.
func (c *Config) WebhookTarget() string {
	return c.Bot.WebhookURL + "/" + c.Bot.Token
}
