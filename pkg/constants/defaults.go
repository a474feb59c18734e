package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultUploadTimeoutSec      = 60
	DefaultWSHandshakeTimeoutSec = 15
)

// Realtime reconnect backoff bounds
const (
	DefaultReconnectInitialMs = 500
	DefaultReconnectMaxSec    = 30
)

// File size constants used by the media package
const (
	BytesPerMegabyte      = 1024 * 1024
	DefaultMaxVoiceSizeMB = 16
	MimeDetectionBufferSize = 512
)

// Voice attachment types accepted by the uploader
var DefaultVoiceTypes = []string{"ogg", "m4a", "aac", "opus"}
