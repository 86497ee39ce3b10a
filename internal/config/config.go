package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      string        `yaml:"server"`
	StateFile   string        `yaml:"state_file"`
	Notify      bool          `yaml:"notify"`
	ReloadDelay time.Duration `yaml:"reload_delay"`
	NotifyTTL   time.Duration `yaml:"notify_ttl"`
	LogLevel    string        `yaml:"log_level"`
	LogFile     string        `yaml:"log_file"`
	WebPush     WebPush       `yaml:"webpush"`
}

// WebPush configures delivery of mention notifications to a push
// subscription. Leaving Subscription empty logs notifications instead.
type WebPush struct {
	Subscription    string `yaml:"subscription"`
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

func defaults() *Config {
	return &Config{
		Server:      "http://localhost:8080",
		StateFile:   "mm.db",
		Notify:      true,
		ReloadDelay: time.Second,
		NotifyTTL:   10 * time.Minute,
		LogLevel:    "info",
	}
}

// Load reads the optional YAML file named by MM_CONFIG and then applies
// environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := getEnv("MM_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Server = getEnv("MM_SERVER", c.Server)
	c.StateFile = getEnv("MM_STATE_FILE", c.StateFile)
	c.LogLevel = getEnv("MM_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("MM_LOG_FILE", c.LogFile)

	if c.Notify, err = strconv.ParseBool(getEnv("MM_NOTIFY", strconv.FormatBool(c.Notify))); err != nil {
		return fmt.Errorf("MM_NOTIFY: %w", err)
	}
	if c.ReloadDelay, err = time.ParseDuration(getEnv("MM_RELOAD_DELAY", c.ReloadDelay.String())); err != nil {
		return fmt.Errorf("MM_RELOAD_DELAY: %w", err)
	}
	if c.NotifyTTL, err = time.ParseDuration(getEnv("MM_NOTIFY_TTL", c.NotifyTTL.String())); err != nil {
		return fmt.Errorf("MM_NOTIFY_TTL: %w", err)
	}

	c.WebPush.Subscription = getEnv("MM_WEBPUSH_SUBSCRIPTION", c.WebPush.Subscription)
	c.WebPush.VAPIDPublicKey = getEnv("MM_VAPID_PUBLIC_KEY", c.WebPush.VAPIDPublicKey)
	c.WebPush.VAPIDPrivateKey = getEnv("MM_VAPID_PRIVATE_KEY", c.WebPush.VAPIDPrivateKey)
	c.WebPush.Subscriber = getEnv("MM_VAPID_SUBSCRIBER", c.WebPush.Subscriber)

	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil {
		return fmt.Errorf("MM_SERVER is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("MM_SERVER must be an http or https URL")
	}
	if u.Host == "" {
		return fmt.Errorf("MM_SERVER must include a host")
	}

	if c.StateFile == "" {
		return fmt.Errorf("MM_STATE_FILE is required")
	}

	if c.ReloadDelay < 0 {
		return fmt.Errorf("MM_RELOAD_DELAY must not be negative")
	}

	if c.NotifyTTL <= 0 {
		return fmt.Errorf("MM_NOTIFY_TTL must be greater than 0")
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	if c.WebPush.Subscription != "" && (c.WebPush.VAPIDPublicKey == "" || c.WebPush.VAPIDPrivateKey == "") {
		return fmt.Errorf("MM_VAPID_PUBLIC_KEY and MM_VAPID_PRIVATE_KEY are required for web push")
	}

	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("MM_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
