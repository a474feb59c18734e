package models

// VoiceState is the capture pipeline state.
type VoiceState string

const (
	VoiceStateIdle      VoiceState = "idle"
	VoiceStateRecording VoiceState = "recording"
	VoiceStatePreview   VoiceState = "preview"
	VoiceStateSending   VoiceState = "sending"
)

// VoiceCaptureSession is a snapshot of the composer's capture pipeline.
// It exists only while the state is not idle and is destroyed on successful
// send or explicit discard.
type VoiceCaptureSession struct {
	State            VoiceState `json:"state"`
	ElapsedSeconds   int        `json:"elapsedSeconds"`
	RecordedURI      string     `json:"recordedUri,omitempty"`
	RecordedDuration int        `json:"recordedDuration,omitempty"`
}
