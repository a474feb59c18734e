package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"chatsync/internal/constants"
	"chatsync/internal/models"
	"chatsync/internal/security"
)

var (
	ErrMissingBackendURL = models.ConfigError{Message: "missing backend API URL"}
	ErrMissingWSURL      = models.ConfigError{Message: "missing realtime websocket URL"}
	ErrMissingCachePath  = models.ConfigError{Message: "missing cache path"}
	ErrMissingViewer     = models.ConfigError{Message: "missing viewer user id"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Backend.APIBaseURL == "" {
		return ErrMissingBackendURL
	}
	if c.Realtime.WSURL == "" {
		return ErrMissingWSURL
	}
	if c.Cache.Path == "" {
		return ErrMissingCachePath
	}
	if c.Viewer.UserID == "" {
		return ErrMissingViewer
	}

	if len(c.Channels) == 0 {
		return models.ConfigError{Message: "channels array is required and must contain at least one channel"}
	}

	seen := make(map[string]bool)
	for i, channel := range c.Channels {
		if channel.ChannelID == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty channel id in channel %d", i)}
		}
		if seen[channel.ChannelID] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate channel id: %s", channel.ChannelID)}
		}
		seen[channel.ChannelID] = true
	}

	if c.Backend.HTTPTimeoutSec <= 0 {
		c.Backend.HTTPTimeoutSec = constants.DefaultBackendHTTPTimeoutSec
	}

	if c.Sync.DebounceMs <= 0 {
		c.Sync.DebounceMs = int(constants.DefaultDebounceWindow.Milliseconds())
	}
	if c.Sync.TypingFreshnessSec <= 0 {
		c.Sync.TypingFreshnessSec = int(constants.DefaultTypingFreshnessWindow.Seconds())
	}
	if c.Sync.TypingQuietTimeoutSec <= 0 {
		c.Sync.TypingQuietTimeoutSec = int(constants.DefaultTypingQuietTimeout.Seconds())
	}
	if c.Sync.TypingPollSec <= 0 {
		c.Sync.TypingPollSec = int(constants.DefaultTypingPollInterval.Seconds())
	}
	if c.Sync.VoiceMaxDurationSec <= 0 {
		c.Sync.VoiceMaxDurationSec = constants.DefaultVoiceMaxDurationSec
	}
	if c.Sync.BottomThreshold <= 0 {
		c.Sync.BottomThreshold = constants.DefaultBottomThreshold
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultRetryMaxAttempts
	}

	if c.Cache.RetentionDays <= 0 {
		c.Cache.RetentionDays = constants.DefaultCacheRetentionDays
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("CHATSYNC_BACKEND_URL"); url != "" {
		c.Backend.APIBaseURL = url
	}
	if url := os.Getenv("CHATSYNC_WS_URL"); url != "" {
		c.Realtime.WSURL = url
	}
	if url := os.Getenv("CHATSYNC_UPLOAD_URL"); url != "" {
		c.Media.UploadURL = url
	}
	if path := os.Getenv("CHATSYNC_CACHE_PATH"); path != "" {
		c.Cache.Path = path
	}
	if level := os.Getenv("CHATSYNC_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if days := os.Getenv("CHATSYNC_CACHE_RETENTION_DAYS"); days != "" {
		if parsed, err := strconv.Atoi(days); err == nil && parsed > 0 {
			c.Cache.RetentionDays = parsed
		}
	}
}
