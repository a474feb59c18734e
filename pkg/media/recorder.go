package media

import (
	"context"
	"fmt"
)

// NullRecorder is the Recorder for hosts without a capture device, such as
// the headless daemon. Permission requests report denied so the capture
// pipeline stays idle without treating the absence of a microphone as a
// fault.
type NullRecorder struct{}

func NewNullRecorder() *NullRecorder {
	return &NullRecorder{}
}

func (r *NullRecorder) RequestPermission(ctx context.Context) (bool, error) {
	return false, nil
}

func (r *NullRecorder) Start(ctx context.Context) error {
	return fmt.Errorf("no capture device available")
}

func (r *NullRecorder) Stop(ctx context.Context) (string, error) {
	return "", fmt.Errorf("no capture device available")
}

func (r *NullRecorder) Cancel(ctx context.Context) error {
	return nil
}

var _ Recorder = (*NullRecorder)(nil)
