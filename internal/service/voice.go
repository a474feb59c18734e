package service

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/errors"
	"chatsync/internal/models"
	"chatsync/pkg/media"

	"github.com/sirupsen/logrus"
)

// CreateVoiceFunc creates the voice message once its artifact is uploaded.
// The session wires this to its optimistic send path.
type CreateVoiceFunc func(ctx context.Context, fileURL string, durationSeconds int) error

// VoiceRecorder drives the recording → preview → send lifecycle for voice
// messages. It touches the message store only through CreateVoiceFunc, on a
// successful send. One recorder exists per composer; entering recording
// while preview holds unsent content is prevented by the caller.
type VoiceRecorder struct {
	recorder    media.Recorder
	uploader    media.Uploader
	createVoice CreateVoiceFunc
	maxDuration int
	logger      *logrus.Logger

	mu               sync.Mutex
	state            models.VoiceState
	elapsed          int
	recordedURI      string
	recordedDuration int
	tickerStop       chan struct{}
	wg               sync.WaitGroup
}

func NewVoiceRecorder(recorder media.Recorder, uploader media.Uploader, createVoice CreateVoiceFunc, maxDurationSec int, logger *logrus.Logger) *VoiceRecorder {
	if maxDurationSec <= 0 {
		maxDurationSec = constants.DefaultVoiceMaxDurationSec
	}
	return &VoiceRecorder{
		recorder:    recorder,
		uploader:    uploader,
		createVoice: createVoice,
		maxDuration: maxDurationSec,
		logger:      logger,
		state:       models.VoiceStateIdle,
	}
}

// Start begins a capture. A permission denial surfaces an error and leaves
// the recorder idle with no state mutation.
func (v *VoiceRecorder) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.state != models.VoiceStateIdle {
		v.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "recorder is not idle")
	}
	v.mu.Unlock()

	granted, err := v.recorder.RequestPermission(ctx)
	if err != nil {
		return errors.NewMediaError("capture", err)
	}
	if !granted {
		return errors.NewPermissionError("microphone")
	}

	if err := v.recorder.Start(ctx); err != nil {
		return errors.NewMediaError("capture", err)
	}

	v.mu.Lock()
	v.state = models.VoiceStateRecording
	v.elapsed = 0
	v.tickerStop = make(chan struct{})
	v.mu.Unlock()

	v.wg.Add(1)
	go v.runTicker(v.tickerStop)

	v.logger.Debug("Voice capture started")
	return nil
}

func (v *VoiceRecorder) runTicker(stop chan struct{}) {
	defer v.wg.Done()
	ticker := time.NewTicker(constants.VoiceTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if v.tick() {
				return
			}
		}
	}
}

// tick advances the elapsed counter and auto-stops at the duration ceiling
// to bound message size. Returns true when the ticker should exit.
func (v *VoiceRecorder) tick() bool {
	v.mu.Lock()
	if v.state != models.VoiceStateRecording {
		v.mu.Unlock()
		return true
	}
	v.elapsed++
	reachedCeiling := v.elapsed >= v.maxDuration
	v.mu.Unlock()

	if reachedCeiling {
		v.logger.WithField("maxDurationSec", v.maxDuration).Info("Voice capture reached duration ceiling, stopping")
		if err := v.Stop(context.Background()); err != nil {
			errors.LogWarn(v.logger, err, "Auto-stop at duration ceiling failed")
		}
		return true
	}
	return false
}

// Stop ends the capture and moves to preview. A capture that produced no
// artifact is a non-fatal abort back to idle, not an error.
func (v *VoiceRecorder) Stop(ctx context.Context) error {
	v.mu.Lock()
	if v.state != models.VoiceStateRecording {
		v.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "recorder is not recording")
	}
	v.stopTickerLocked()
	elapsed := v.elapsed
	v.mu.Unlock()

	uri, err := v.recorder.Stop(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.state = models.VoiceStateIdle
		return errors.NewMediaError("capture", err)
	}
	if uri == "" {
		v.state = models.VoiceStateIdle
		v.logger.Debug("Voice capture produced no artifact, aborting")
		return nil
	}

	v.state = models.VoiceStatePreview
	v.recordedURI = uri
	v.recordedDuration = elapsed
	return nil
}

// Cancel discards an in-flight capture with no network calls.
func (v *VoiceRecorder) Cancel(ctx context.Context) {
	v.mu.Lock()
	if v.state != models.VoiceStateRecording {
		v.mu.Unlock()
		return
	}
	v.stopTickerLocked()
	v.state = models.VoiceStateIdle
	v.elapsed = 0
	v.mu.Unlock()

	if err := v.recorder.Cancel(ctx); err != nil {
		errors.LogWarn(v.logger, err, "Failed to cancel capture")
	}
}

// Discard drops the previewed artifact.
func (v *VoiceRecorder) Discard() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != models.VoiceStatePreview {
		return
	}
	v.state = models.VoiceStateIdle
	v.recordedURI = ""
	v.recordedDuration = 0
	v.elapsed = 0
}

// Send uploads the previewed artifact and creates the voice message. A
// failure at any point returns to preview with the recorded URI intact so
// the user can retry without re-recording; user-generated content is never
// destroyed before it is durably sent.
func (v *VoiceRecorder) Send(ctx context.Context) error {
	v.mu.Lock()
	if v.state != models.VoiceStatePreview {
		v.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "nothing to send")
	}
	v.state = models.VoiceStateSending
	uri := v.recordedURI
	duration := v.recordedDuration
	v.mu.Unlock()

	fileURL, err := v.uploader.Upload(ctx, uri)
	if err != nil {
		v.backToPreview()
		return errors.NewMediaError("upload", err)
	}

	if err := v.createVoice(ctx, fileURL, duration); err != nil {
		v.backToPreview()
		return errors.NewSendError("voice send", err)
	}

	v.mu.Lock()
	v.state = models.VoiceStateIdle
	v.recordedURI = ""
	v.recordedDuration = 0
	v.elapsed = 0
	v.mu.Unlock()

	v.logger.WithField("durationSec", duration).Info("Voice message sent")
	return nil
}

func (v *VoiceRecorder) backToPreview() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == models.VoiceStateSending {
		v.state = models.VoiceStatePreview
	}
}

// Session returns a snapshot of the capture pipeline for the composer UI.
func (v *VoiceRecorder) Session() models.VoiceCaptureSession {
	v.mu.Lock()
	defer v.mu.Unlock()

	return models.VoiceCaptureSession{
		State:            v.state,
		ElapsedSeconds:   v.elapsed,
		RecordedURI:      v.recordedURI,
		RecordedDuration: v.recordedDuration,
	}
}

func (v *VoiceRecorder) stopTickerLocked() {
	if v.tickerStop != nil {
		close(v.tickerStop)
		v.tickerStop = nil
	}
}
