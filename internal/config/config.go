// Package config loads replydesk settings from an optional YAML file,
// REPLYDESK_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Gmail     GmailConfig     `mapstructure:"gmail"`
	Draft     DraftConfig     `mapstructure:"draft"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Console   ConsoleConfig   `mapstructure:"console"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Dictation DictationConfig `mapstructure:"dictation"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	AccessLog bool   `mapstructure:"access_log"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

type ArchiveConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MinRest  time.Duration `mapstructure:"min_rest"`
}

type DeliveryConfig struct {
	Kind       string        `mapstructure:"kind"` // webhook | smtp | gmail
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	StartTLS bool   `mapstructure:"starttls"`
}

type GmailConfig struct {
	ConfigDir string `mapstructure:"config_dir"`
	From      string `mapstructure:"from"`
}

type DraftConfig struct {
	Kind       string        `mapstructure:"kind"` // webhook | anthropic | none
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type ConsoleConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SendDelay    time.Duration `mapstructure:"send_delay"`
	ToastTTL     time.Duration `mapstructure:"toast_ttl"`
	Ledger       string        `mapstructure:"ledger"` // sqlite | memory | redis
	StateDir     string        `mapstructure:"state_dir"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DictationConfig struct {
	Command string        `mapstructure:"command"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

// DefaultDir is ~/.config/replydesk, the home of the config file, the
// console state and the Gmail token.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".replydesk"
	}
	return filepath.Join(home, ".config", "replydesk")
}

func setDefaults(v *viper.Viper) {
	dir := DefaultDir()
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.access_log", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", filepath.Join(dir, "replydesk.db"))
	v.SetDefault("archive.interval", time.Minute)
	v.SetDefault("archive.min_rest", time.Duration(0))
	v.SetDefault("delivery.kind", "webhook")
	v.SetDefault("delivery.webhook_url", "http://localhost:5678/webhook/send-email")
	v.SetDefault("delivery.timeout", 30*time.Second)
	v.SetDefault("smtp.addr", "localhost:587")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.starttls", true)
	v.SetDefault("gmail.config_dir", dir)
	v.SetDefault("gmail.from", "")
	v.SetDefault("draft.kind", "webhook")
	v.SetDefault("draft.webhook_url", "http://localhost:5678/webhook/regenerate")
	v.SetDefault("draft.timeout", 60*time.Second)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("console.api_url", "http://localhost:5000")
	v.SetDefault("console.poll_interval", 5*time.Second)
	v.SetDefault("console.send_delay", 800*time.Millisecond)
	v.SetDefault("console.toast_ttl", 3*time.Second)
	v.SetDefault("console.ledger", "sqlite")
	v.SetDefault("console.state_dir", dir)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("dictation.command", "")
	v.SetDefault("dictation.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. An explicit path must exist; otherwise
// replydesk.yaml is looked up in the working directory and DefaultDir, and
// its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("REPLYDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("replydesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Archive.MinRest <= 0 {
		cfg.Archive.MinRest = cfg.Archive.Interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func oneOf(key, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (want one of %s)", key, val, strings.Join(allowed, ", "))
}

// Validate checks enumerated settings and the fields each choice needs.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	add(oneOf("store.driver", c.Store.Driver, "sqlite", "postgres"))
	add(oneOf("delivery.kind", c.Delivery.Kind, "webhook", "smtp", "gmail"))
	add(oneOf("draft.kind", c.Draft.Kind, "webhook", "anthropic", "none"))
	add(oneOf("console.ledger", c.Console.Ledger, "sqlite", "memory", "redis"))
	add(oneOf("log.format", c.Log.Format, "text", "json"))
	add(oneOf("log.level", strings.ToLower(c.Log.Level), "debug", "info", "warn", "error"))

	if c.Store.DSN == "" {
		add(errors.New("store.dsn is required"))
	}
	if c.Delivery.Kind == "webhook" && c.Delivery.WebhookURL == "" {
		add(errors.New("delivery.webhook_url is required for webhook delivery"))
	}
	if c.Delivery.Kind == "smtp" && c.SMTP.From == "" {
		add(errors.New("smtp.from is required for smtp delivery"))
	}
	if c.Delivery.Kind == "gmail" && c.Gmail.From == "" {
		add(errors.New("gmail.from is required for gmail delivery"))
	}
	if c.Draft.Kind == "webhook" && c.Draft.WebhookURL == "" {
		add(errors.New("draft.webhook_url is required for webhook drafts"))
	}
	if c.Archive.Interval <= 0 {
		add(errors.New("archive.interval must be positive"))
	}
	if c.Console.PollInterval <= 0 {
		add(errors.New("console.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}
