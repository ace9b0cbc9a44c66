package cliconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnvConfig.
const EnvPrefix = "THREADMIRROR_"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" || !FileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// ApplyEnvConfig applies configuration from environment variables (THREADMIRROR_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("community", env("COMMUNITY"), &cfg.Community)
	s.setString("account", env("ACCOUNT"), &cfg.Account)
	s.setString("marker", env("MARKER"), &cfg.Marker)
	s.setString("notice", env("NOTICE"), &cfg.Notice)
	s.setString("thread-strategy", env("THREAD_STRATEGY"), &cfg.ThreadStrategy)
	s.setString("moderation-strategy", env("MODERATION_STRATEGY"), &cfg.ModerationStrategy)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("client-id", env("CLIENT_ID"), &cfg.ClientID)
	s.setString("client-secret", env("CLIENT_SECRET"), &cfg.ClientSecret)
	s.setString("refresh-token", env("REFRESH_TOKEN"), &cfg.RefreshToken)
	s.setString("user-agent", env("USER_AGENT"), &cfg.UserAgent)
	s.setString("api-url", env("API_URL"), &cfg.APIURL)
	s.setString("token-url", env("TOKEN_URL"), &cfg.TokenURL)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("capacity", env("CAPACITY"), &cfg.Capacity); err != nil {
		return err
	}
	if err := s.setIntFromString("stream-limit", env("STREAM_LIMIT"), &cfg.StreamLimit); err != nil {
		return err
	}

	if err := s.setDuration("max-age", env("MAX_AGE"), &cfg.MaxAge); err != nil {
		return err
	}
	if err := s.setDuration("idle-delay", env("IDLE_DELAY"), &cfg.IdleDelay); err != nil {
		return err
	}
	if err := s.setDuration("server-backoff", env("SERVER_BACKOFF"), &cfg.ServerBackoff); err != nil {
		return err
	}
	if err := s.setDuration("response-backoff", env("RESPONSE_BACKOFF"), &cfg.ResponseBackoff); err != nil {
		return err
	}
	if err := s.setDuration("request-backoff", env("REQUEST_BACKOFF"), &cfg.RequestBackoff); err != nil {
		return err
	}
	if err := s.setDuration("checkpoint", env("CHECKPOINT_INTERVAL"), &cfg.CheckpointInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	// patterns may contain commas, so they are newline separated
	s.setListFromString("exclude-title", env("EXCLUDE_TITLES"), ",", &cfg.ExcludeTitles)
	s.setListFromString("exclude-pattern", env("EXCLUDE_PATTERNS"), "\n", &cfg.ExcludePatterns)

	s.setBoolFromString("once", env("ONCE"), &cfg.Once)

	return nil
}
