package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/threadmirror/internal/app"
	"github.com/bft-labs/threadmirror/internal/domain"
)

// Reddit defaults.
const (
	DefaultAPIURL    = "https://oauth.reddit.com"
	DefaultTokenURL  = "https://www.reddit.com/api/v1/access_token"
	DefaultUserAgent = "linux:threadmirror:v1.0"
)

// Config holds CLI configuration for threadmirror.
type Config struct {
	// Community is a subreddit name, or several joined with "+" or ",".
	Community string
	Account   string
	Marker    string
	Notice    string

	ThreadStrategy     string
	ModerationStrategy string

	Capacity    int
	StreamLimit int
	MaxAge      time.Duration

	IdleDelay          time.Duration
	ServerBackoff      time.Duration
	ResponseBackoff    time.Duration
	RequestBackoff     time.Duration
	CheckpointInterval time.Duration
	HTTPTimeout        time.Duration

	StateDir string

	ClientID     string
	ClientSecret string
	RefreshToken string
	UserAgent    string
	APIURL       string
	TokenURL     string

	ExcludeTitles   []string
	ExcludePatterns []string

	LogLevel string
	EnvFile  string
	Once     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Marker:             app.DefaultMarker,
		Notice:             app.DefaultNotice,
		ThreadStrategy:     app.ThreadStrategySelf,
		ModerationStrategy: app.ModerationInbox,
		Capacity:           domain.DefaultCapacity,
		StreamLimit:        app.DefaultStreamLimit,
		MaxAge:             app.DefaultMaxAge,
		IdleDelay:          app.DefaultIdleDelay,
		ServerBackoff:      app.DefaultServerBackoff,
		ResponseBackoff:    app.DefaultResponseBackoff,
		RequestBackoff:     app.DefaultRequestBackoff,
		CheckpointInterval: app.DefaultCheckpointInterval,
		HTTPTimeout:        30 * time.Second,
		StateDir:           "", // Derived from the home directory during Validate
		UserAgent:          DefaultUserAgent,
		APIURL:             DefaultAPIURL,
		TokenURL:           DefaultTokenURL,
		LogLevel:           "info",
		EnvFile:            ".env",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
// Errors wrap domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	c.Community = normalizeCommunity(c.Community)
	if c.Community == "" {
		return invalid("community is required")
	}

	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return invalid("client id, client secret and refresh token are required")
	}

	switch c.ThreadStrategy {
	case "":
		c.ThreadStrategy = app.ThreadStrategySelf
	case app.ThreadStrategySelf, app.ThreadStrategySearch:
	default:
		return invalid("unknown thread strategy %q", c.ThreadStrategy)
	}

	switch c.ModerationStrategy {
	case "":
		c.ModerationStrategy = app.ModerationInbox
	case app.ModerationInbox, app.ModerationSweep:
	default:
		return invalid("unknown moderation strategy %q", c.ModerationStrategy)
	}

	if c.Marker = strings.TrimSpace(c.Marker); c.Marker == "" {
		c.Marker = app.DefaultMarker
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}

	if c.Capacity <= 0 {
		return invalid("capacity must be positive")
	}
	if c.IdleDelay <= 0 {
		return invalid("idle delay must be positive")
	}
	if c.MaxAge <= 0 {
		return invalid("max age must be positive")
	}

	if _, err := app.NewFilters(c.ExcludeTitles, c.ExcludePatterns); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	return nil
}

// Backoff returns the poll loop delays.
func (c Config) Backoff() app.Backoff {
	return app.Backoff{
		Idle:     c.IdleDelay,
		Server:   c.ServerBackoff,
		Response: c.ResponseBackoff,
		Request:  c.RequestBackoff,
	}
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "*****"
	}
	c.ClientSecret = mask(c.ClientSecret)
	c.RefreshToken = mask(c.RefreshToken)
	return c
}

// DefaultStateDir returns ~/.threadmirror, or the working directory when the
// home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".threadmirror")
	}
	return "."
}

func normalizeCommunity(s string) string {
	var parts []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' || r == ' ' }) {
		p = strings.TrimPrefix(p, "r/")
		p = strings.TrimPrefix(p, "/r/")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "+")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings replaces a list if the new one is non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits value on sep, dropping blank items.
func (s *configSetter) setListFromString(flag, value, sep string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, v := range strings.Split(value, sep) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	s.setStrings(flag, out, dst)
}
