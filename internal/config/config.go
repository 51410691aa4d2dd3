package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/stashhook/internal/foundation/errors"
)

// AuthType identifies how requests to the server are authenticated.
type AuthType string

const (
	AuthAnonymous AuthType = "anonymous"
	AuthToken     AuthType = "token"
	AuthBasic     AuthType = "basic"
)

// Config is the top-level stashhook configuration.
type Config struct {
	Server       ServerConfig  `yaml:"server"`
	Webhook      WebhookConfig `yaml:"webhook"`
	Repositories []Repository  `yaml:"repositories"`
	Daemon       DaemonConfig  `yaml:"daemon,omitempty"`
}

// ServerConfig identifies the Bitbucket Server instance and how to
// authenticate against it.
type ServerConfig struct {
	BaseURL string     `yaml:"base_url"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig carries credential material. Token and username/password are
// commonly injected through the environment rather than the file; see Load.
type AuthConfig struct {
	Type     AuthType `yaml:"type"`
	Token    string   `yaml:"token,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

// WebhookConfig describes the desired CI callback webhook.
type WebhookConfig struct {
	Name        string   `yaml:"name"`
	CallbackURL string   `yaml:"callback_url"`
	Events      []string `yaml:"events"`
}

// Repository names one repository whose webhook is managed.
type Repository struct {
	Project string `yaml:"project"`
	Slug    string `yaml:"slug"`
}

// DaemonConfig configures the reconciliation daemon. Interval is a
// time.ParseDuration string such as "15m".
type DaemonConfig struct {
	Interval    string `yaml:"interval,omitempty"`
	JournalPath string `yaml:"journal_path,omitempty"`
}

// IntervalDuration returns the parsed reconcile interval. Validate has
// already checked that the string parses.
func (d DaemonConfig) IntervalDuration() time.Duration {
	dur, err := time.ParseDuration(d.Interval)
	if err != nil {
		return defaultIntervalDuration
	}
	return dur
}

const (
	defaultWebhookName      = "stashhook"
	defaultInterval         = "15m"
	defaultIntervalDuration = 15 * time.Minute
	defaultJournalPath      = "stashhook.db"
)

// defaultEvents matches what a CI integration needs: ref updates and mirror
// synchronization.
var defaultEvents = []string{"repo:refs_changed", "mirror:repo_synchronized"}

// Load reads, normalizes, and validates a configuration file. Environment
// variables STASHHOOK_BASE_URL, STASHHOOK_TOKEN, STASHHOOK_USERNAME and
// STASHHOOK_PASSWORD override their file counterparts so secrets can stay
// out of the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STASHHOOK_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("STASHHOOK_TOKEN"); v != "" {
		c.Server.Auth.Token = v
	}
	if v := os.Getenv("STASHHOOK_USERNAME"); v != "" {
		c.Server.Auth.Username = v
	}
	if v := os.Getenv("STASHHOOK_PASSWORD"); v != "" {
		c.Server.Auth.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Auth.Type == "" {
		switch {
		case c.Server.Auth.Token != "":
			c.Server.Auth.Type = AuthToken
		case c.Server.Auth.Username != "":
			c.Server.Auth.Type = AuthBasic
		default:
			c.Server.Auth.Type = AuthAnonymous
		}
	}
	if c.Webhook.Name == "" {
		c.Webhook.Name = defaultWebhookName
	}
	if len(c.Webhook.Events) == 0 {
		c.Webhook.Events = defaultEvents
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = defaultInterval
	}
	if c.Daemon.JournalPath == "" {
		c.Daemon.JournalPath = defaultJournalPath
	}
}

// Validate checks the configuration for problems that would make every
// later operation fail.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.ConfigError("server.base_url is required").Build()
	}
	switch c.Server.Auth.Type {
	case AuthAnonymous:
	case AuthToken:
		if c.Server.Auth.Token == "" {
			return errors.ConfigError("auth type token requires a token").Build()
		}
	case AuthBasic:
		if c.Server.Auth.Username == "" || c.Server.Auth.Password == "" {
			return errors.ConfigError("auth type basic requires username and password").Build()
		}
	default:
		return errors.ConfigError("unknown auth type").
			WithContext("type", string(c.Server.Auth.Type)).
			Build()
	}
	if _, err := time.ParseDuration(c.Daemon.Interval); err != nil {
		return errors.ConfigError("daemon.interval is not a valid duration").
			WithCause(err).
			WithContext("interval", c.Daemon.Interval).
			Build()
	}
	for _, repo := range c.Repositories {
		if repo.Project == "" || repo.Slug == "" {
			return errors.ConfigError("repository entries require project and slug").Build()
		}
	}
	return nil
}
