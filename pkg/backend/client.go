package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatsync/pkg/backend/types"
	"chatsync/pkg/constants"

	"github.com/sirupsen/logrus"
)

// HTTPClient talks to the backend relational store over its row-level HTTP
// API. Safe for concurrent use; the underlying http.Client does the pooling.
type HTTPClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	logger    *logrus.Logger
}

// StatusError is returned for non-2xx backend responses so callers can
// distinguish transient upstream failures from request errors.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d for %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// IsTransient reports whether the failure is worth retrying.
func (e *StatusError) IsTransient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

func NewClient(baseURL, authToken string, httpClient *http.Client) *HTTPClient {
	return NewClientWithLogger(baseURL, authToken, httpClient, nil)
}

func NewClientWithLogger(baseURL, authToken string, httpClient *http.Client, logger *logrus.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.DefaultHTTPTimeoutSec * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &HTTPClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		authToken: authToken,
		client:    httpClient,
		logger:    logger,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Endpoint: path, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) FetchMessages(ctx context.Context, channelID string) ([]types.MessageRow, error) {
	var rows []types.MessageRow
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) FetchMessage(ctx context.Context, channelID, messageID string) (*types.MessageRow, error) {
	var row types.MessageRow
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	err := c.do(ctx, http.MethodGet, path, nil, &row)
	if err != nil {
		var statusErr *StatusError
		if isStatus(err, http.StatusNotFound, &statusErr) {
			// Row vanished between the push event and our fetch.
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (c *HTTPClient) FetchReactions(ctx context.Context, messageIDs []string) ([]types.ReactionRow, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var rows []types.ReactionRow
	payload := map[string][]string{"messageIds": messageIDs}
	if err := c.do(ctx, http.MethodPost, "/reactions/batch", payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) FetchAttachments(ctx context.Context, messageIDs []string) ([]types.AttachmentRow, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var rows []types.AttachmentRow
	payload := map[string][]string{"messageIds": messageIDs}
	if err := c.do(ctx, http.MethodPost, "/attachments/batch", payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) FetchMembers(ctx context.Context, channelID string) ([]types.MemberRow, error) {
	var rows []types.MemberRow
	path := fmt.Sprintf("/channels/%s/members", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) FetchTyping(ctx context.Context, channelID string) ([]types.TypingRow, error) {
	var rows []types.TypingRow
	path := fmt.Sprintf("/channels/%s/typing", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) CreateMessage(ctx context.Context, req types.CreateMessageRequest) (*types.MessageRow, error) {
	var row types.MessageRow
	if err := c.do(ctx, http.MethodPost, "/messages", req, &row); err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, fmt.Errorf("backend returned message without id")
	}
	return &row, nil
}

func (c *HTTPClient) AddReaction(ctx context.Context, channelID, messageID, userID, reactionType string) error {
	payload := map[string]string{
		"channelId":    channelID,
		"messageId":    messageID,
		"userId":       userID,
		"reactionType": reactionType,
	}
	return c.do(ctx, http.MethodPost, "/reactions", payload, nil)
}

func (c *HTTPClient) RemoveReaction(ctx context.Context, channelID, messageID, userID, reactionType string) error {
	payload := map[string]string{
		"channelId":    channelID,
		"messageId":    messageID,
		"userId":       userID,
		"reactionType": reactionType,
	}
	return c.do(ctx, http.MethodPost, "/reactions/delete", payload, nil)
}

func (c *HTTPClient) SoftDeleteMessage(ctx context.Context, channelID, messageID, actorID string) error {
	payload := map[string]interface{}{
		"actorId":   actorID,
		"deletedAt": time.Now().UTC(),
	}
	path := fmt.Sprintf("/channels/%s/messages/%s/delete", url.PathEscape(channelID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *HTTPClient) InsertTyping(ctx context.Context, channelID, userID string) error {
	payload := map[string]interface{}{
		"userId":    userID,
		"startedAt": time.Now().UTC(),
	}
	path := fmt.Sprintf("/channels/%s/typing", url.PathEscape(channelID))
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *HTTPClient) DeleteTyping(ctx context.Context, channelID, userID string) error {
	path := fmt.Sprintf("/channels/%s/typing/%s", url.PathEscape(channelID), url.PathEscape(userID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) UpdateLastRead(ctx context.Context, channelID, userID string, at time.Time) error {
	payload := map[string]interface{}{"lastReadAt": at.UTC()}
	path := fmt.Sprintf("/channels/%s/members/%s/last-read", url.PathEscape(channelID), url.PathEscape(userID))
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

func isStatus(err error, code int, target **StatusError) bool {
	statusErr, ok := err.(*StatusError)
	if !ok || statusErr.StatusCode != code {
		return false
	}
	*target = statusErr
	return true
}

var _ types.Client = (*HTTPClient)(nil)
