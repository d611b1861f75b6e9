package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultControlURL          = "wss://localhost:9000/control"
	DefaultVoiceAddress        = "localhost:9001"
	DefaultReplyTimeoutSeconds = 5
	DefaultDialTimeoutSeconds  = 10
	DefaultLogLevel            = "warn"
)

// Config represents configuration data for a smoke-test run.
type Config struct {
	ControlURL          string `yaml:"control_url"`
	VoiceAddress        string `yaml:"voice_address"`
	ReplyTimeoutSeconds int    `yaml:"reply_timeout_seconds"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	InsecureSkipVerify  bool   `yaml:"insecure_skip_verify"`
	HistoryFile         string `yaml:"history_file"`
	LogLevel            string `yaml:"log_level"`
}

// DefaultConfig returns the fixed local-diagnostic targets.
func DefaultConfig() Config {
	return Config{
		ControlURL:          DefaultControlURL,
		VoiceAddress:        DefaultVoiceAddress,
		ReplyTimeoutSeconds: DefaultReplyTimeoutSeconds,
		DialTimeoutSeconds:  DefaultDialTimeoutSeconds,
		LogLevel:            DefaultLogLevel,
	}
}

// ReplyTimeout is how long the control probe waits for a reply.
func (c Config) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutSeconds) * time.Second
}

// DialTimeout bounds the control channel handshake.
func (c Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ControlURL) == "" {
		c.ControlURL = DefaultControlURL
	}
	if strings.TrimSpace(c.VoiceAddress) == "" {
		c.VoiceAddress = DefaultVoiceAddress
	}
	if c.ReplyTimeoutSeconds <= 0 {
		c.ReplyTimeoutSeconds = DefaultReplyTimeoutSeconds
	}
	if c.DialTimeoutSeconds <= 0 {
		c.DialTimeoutSeconds = DefaultDialTimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks that both targets are usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.ControlURL)
	if err != nil {
		return fmt.Errorf("control_url: %w", err)
	}
	if u.Scheme != "wss" && u.Scheme != "ws" {
		return fmt.Errorf("control_url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("control_url must include a host")
	}
	if _, _, err := net.SplitHostPort(c.VoiceAddress); err != nil {
		return fmt.Errorf("voice_address: %w", err)
	}
	return nil
}
