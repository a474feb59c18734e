package models

// Config holds the application configuration
type Config struct {
	Backend  BackendConfig   `json:"backend"`
	Realtime RealtimeConfig  `json:"realtime"`
	Media    MediaConfig     `json:"media"`
	Cache    CacheConfig     `json:"cache"`
	Sync     SyncConfig      `json:"sync"`
	Retry    RetryConfig     `json:"retry"`
	Tracing  TracingConfig   `json:"tracing"`
	Viewer   ViewerConfig    `json:"viewer"`
	Channels []ChannelConfig `json:"channels"`
	LogLevel string          `json:"log_level"`
}

// BackendConfig holds the relational-store API configuration
type BackendConfig struct {
	APIBaseURL     string `json:"api_base_url"`
	HTTPTimeoutSec int    `json:"httpTimeoutSec"`
}

// RealtimeConfig holds the change-event stream configuration
type RealtimeConfig struct {
	WSURL string `json:"ws_url"`
}

// MediaConfig holds voice capture and upload configuration
type MediaConfig struct {
	UploadURL      string   `json:"upload_url"`
	MaxVoiceSizeMB int      `json:"maxVoiceSizeMB"`
	VoiceTypes     []string `json:"voiceTypes"`
}

// CacheConfig holds the local timeline cache configuration
type CacheConfig struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retentionDays"`
}

// SyncConfig holds the engine's timing windows and thresholds. Zero values
// fall back to the reference defaults.
type SyncConfig struct {
	DebounceMs            int     `json:"debounceMs"`
	TypingFreshnessSec    int     `json:"typingFreshnessSec"`
	TypingQuietTimeoutSec int     `json:"typingQuietTimeoutSec"`
	TypingPollSec         int     `json:"typingPollSec"`
	VoiceMaxDurationSec   int     `json:"voiceMaxDurationSec"`
	BottomThreshold       float64 `json:"bottomThreshold"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// ViewerConfig identifies the local user the engine acts for
type ViewerConfig struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// ChannelConfig holds one channel subscription
type ChannelConfig struct {
	ChannelID string `json:"channelId"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
