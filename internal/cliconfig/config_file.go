package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Community          string `toml:"community"`
	Account            string `toml:"account"`
	Marker             string `toml:"marker"`
	Notice             string `toml:"notice"`
	ThreadStrategy     string `toml:"thread_strategy"`
	ModerationStrategy string `toml:"moderation_strategy"`
	Capacity           int    `toml:"capacity"`
	StreamLimit        int    `toml:"stream_limit"`
	MaxAge             string `toml:"max_age"`
	IdleDelay          string `toml:"idle_delay"`
	ServerBackoff      string `toml:"server_backoff"`
	ResponseBackoff    string `toml:"response_backoff"`
	RequestBackoff     string `toml:"request_backoff"`
	CheckpointInterval string `toml:"checkpoint_interval"`
	HTTPTimeout        string `toml:"http_timeout"`
	StateDir           string `toml:"state_dir"`
	ClientID           string `toml:"client_id"`
	ClientSecret       string `toml:"client_secret"`
	RefreshToken       string `toml:"refresh_token"`
	UserAgent          string `toml:"user_agent"`
	APIURL             string `toml:"api_url"`
	TokenURL           string `toml:"token_url"`
	LogLevel           string `toml:"log_level"`
	EnvFile            string `toml:"env_file"`
	Once               *bool  `toml:"once"`

	Filters FilterConfig `toml:"filters"`
}

// FilterConfig is the hot-reloadable [filters] table.
type FilterConfig struct {
	ExcludeTitles   []string `toml:"exclude_titles"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.threadmirror/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".threadmirror", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("community", fc.Community, &cfg.Community)
	s.setString("account", fc.Account, &cfg.Account)
	s.setString("marker", fc.Marker, &cfg.Marker)
	s.setString("notice", fc.Notice, &cfg.Notice)
	s.setString("thread-strategy", fc.ThreadStrategy, &cfg.ThreadStrategy)
	s.setString("moderation-strategy", fc.ModerationStrategy, &cfg.ModerationStrategy)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("client-id", fc.ClientID, &cfg.ClientID)
	s.setString("client-secret", fc.ClientSecret, &cfg.ClientSecret)
	s.setString("refresh-token", fc.RefreshToken, &cfg.RefreshToken)
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setString("api-url", fc.APIURL, &cfg.APIURL)
	s.setString("token-url", fc.TokenURL, &cfg.TokenURL)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("env-file", fc.EnvFile, &cfg.EnvFile)

	s.setInt("capacity", fc.Capacity, &cfg.Capacity)
	s.setInt("stream-limit", fc.StreamLimit, &cfg.StreamLimit)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"max-age", fc.MaxAge, &cfg.MaxAge},
		{"idle-delay", fc.IdleDelay, &cfg.IdleDelay},
		{"server-backoff", fc.ServerBackoff, &cfg.ServerBackoff},
		{"response-backoff", fc.ResponseBackoff, &cfg.ResponseBackoff},
		{"request-backoff", fc.RequestBackoff, &cfg.RequestBackoff},
		{"checkpoint", fc.CheckpointInterval, &cfg.CheckpointInterval},
		{"timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setStrings("exclude-title", fc.Filters.ExcludeTitles, &cfg.ExcludeTitles)
	s.setStrings("exclude-pattern", fc.Filters.ExcludePatterns, &cfg.ExcludePatterns)

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
