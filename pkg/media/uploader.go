package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatsync/pkg/constants"

	"github.com/sirupsen/logrus"
)

// HTTPUploader uploads voice artifacts to the backend's media endpoint via
// multipart POST and returns the public URL from the response.
type HTTPUploader struct {
	uploadURL    string
	authToken    string
	client       *http.Client
	maxSizeBytes int64
	allowedTypes map[string]bool
	logger       *logrus.Logger
}

func NewHTTPUploader(uploadURL, authToken string, maxSizeMB int, allowedTypes []string, logger *logrus.Logger) *HTTPUploader {
	if maxSizeMB <= 0 {
		maxSizeMB = constants.DefaultMaxVoiceSizeMB
	}
	if len(allowedTypes) == 0 {
		allowedTypes = constants.DefaultVoiceTypes
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}

	return &HTTPUploader{
		uploadURL:    uploadURL,
		authToken:    authToken,
		client:       &http.Client{Timeout: constants.DefaultUploadTimeoutSec * time.Second},
		maxSizeBytes: int64(maxSizeMB) * constants.BytesPerMegabyte,
		allowedTypes: allowed,
		logger:       logger,
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, localURI string) (string, error) {
	path := strings.TrimPrefix(localURI, "file://")

	if err := u.validate(path); err != nil {
		return "", err
	}

	file, err := os.Open(path) // #nosec G304 - artifact path produced by the local recorder
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create multipart payload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+u.authToken)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		FileURL string `json:"fileUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.FileURL == "" {
		return "", fmt.Errorf("upload response missing file URL")
	}

	u.logger.WithField("file", filepath.Base(path)).Debug("Artifact uploaded")
	return result.FileURL, nil
}

func (u *HTTPUploader) validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact not accessible: %w", err)
	}
	if info.Size() > u.maxSizeBytes {
		return fmt.Errorf("artifact size %d exceeds limit of %d bytes", info.Size(), u.maxSizeBytes)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !u.allowedTypes[ext] {
		return fmt.Errorf("artifact type %q not allowed", ext)
	}
	return nil
}

var _ Uploader = (*HTTPUploader)(nil)
