package constants

import "time"

// Sync engine windows and thresholds (reference values; config can override)
const (
	DefaultDebounceWindow = 300 * time.Millisecond

	DefaultTypingFreshnessWindow = 5 * time.Second
	DefaultTypingQuietTimeout    = 3 * time.Second
	DefaultTypingPollInterval    = 3 * time.Second

	DefaultVoiceMaxDurationSec = 120
	VoiceTickerInterval        = time.Second

	DefaultBottomThreshold = 150.0
)

// Retry defaults
const (
	DefaultInitialBackoffMs   = 500
	DefaultMaxBackoffMs       = 30000
	DefaultRetryMaxAttempts   = 3
	DefaultCacheRetryAttempts = 5
)

// Cache defaults
const (
	DefaultCacheRetentionDays          = 30
	CacheCleanupSchedulerIntervalHours = 24
)

// Timeouts
const (
	DefaultBackendHTTPTimeoutSec = 30
	RefetchTimeout               = 30 * time.Second
	SingleFetchTimeout           = 10 * time.Second
	WriteTimeout                 = 15 * time.Second
)

// Server constants
const (
	DefaultGracefulShutdownSec = 30
	ServerErrorChannelSize     = 1
)

// File permission constants
const (
	DefaultFilePermissions      = 0600
	DefaultDirectoryPermissions = 0750
)

// Privacy masking lengths for logs
const (
	DefaultUserMaskLength     = 4
	DefaultMessageIDLogLength = 12
)
