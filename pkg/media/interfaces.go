package media

import "context"

// Recorder is the hardware capture collaborator. Implementations wrap a
// platform recorder; the voice state machine only sees artifact URIs.
type Recorder interface {
	// RequestPermission asks for capture permission; false means the user
	// (or platform) denied it.
	RequestPermission(ctx context.Context) (bool, error)

	// Start begins capturing into a new artifact.
	Start(ctx context.Context) error

	// Stop ends the capture and returns the local artifact URI. An empty
	// URI with a nil error means the hardware produced nothing, which is
	// treated as a non-fatal abort.
	Stop(ctx context.Context) (string, error)

	// Cancel ends the capture and discards the artifact.
	Cancel(ctx context.Context) error
}

// Uploader moves a local artifact to durable storage and returns its public
// URL.
type Uploader interface {
	Upload(ctx context.Context, localURI string) (string, error)
}
