package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chatsync/pkg/backend/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTypingBackend struct {
	mu       sync.Mutex
	rows     []types.TypingRow
	fetchErr error
	calls    []string
}

func (f *fakeTypingBackend) FetchTyping(ctx context.Context, channelID string) ([]types.TypingRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "fetch")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]types.TypingRow(nil), f.rows...), nil
}

func (f *fakeTypingBackend) InsertTyping(ctx context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert:"+userID)
	return nil
}

func (f *fakeTypingBackend) DeleteTyping(ctx context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+userID)
	return nil
}

func (f *fakeTypingBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestTracker(backend *fakeTypingBackend, resolver NameResolver) *TypingTracker {
	return NewTypingTracker("c1", "self", backend, resolver,
		5*time.Second, 50*time.Millisecond, time.Hour, quietLogger())
}

func TestFormatTypingLabel(t *testing.T) {
	tests := []struct {
		names    []string
		expected string
	}{
		{nil, ""},
		{[]string{"Alice"}, "Alice is typing…"},
		{[]string{"Alice", "Bob"}, "Alice and Bob are typing…"},
		{[]string{"Alice", "Bob", "Carol"}, "Alice and 2 others are typing…"},
		{[]string{"Alice", "Bob", "Carol", "Dan", "Eve"}, "Alice and 4 others are typing…"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d names", len(tt.names)), func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTypingLabel(tt.names))
		})
	}
}

func TestRefreshFiltersSelfAndStaleRows(t *testing.T) {
	now := time.Now().UTC()
	backend := &fakeTypingBackend{
		rows: []types.TypingRow{
			{ChannelID: "c1", UserID: "self", StartedAt: now},
			{ChannelID: "c1", UserID: "u2", StartedAt: now.Add(-2 * time.Second)},
			{ChannelID: "c1", UserID: "u3", StartedAt: now.Add(-10 * time.Second)},
		},
	}
	tracker := newTestTracker(backend, func(userID string) (string, bool) {
		if userID == "u2" {
			return "Bob", true
		}
		return "", false
	})
	tracker.now = func() time.Time { return now }

	tracker.Refresh(context.Background())

	assert.Equal(t, "Bob is typing…", tracker.Summary())
}

func TestRefreshFallsBackToUserIdForUnknownMembers(t *testing.T) {
	now := time.Now().UTC()
	backend := &fakeTypingBackend{
		rows: []types.TypingRow{
			{ChannelID: "c1", UserID: "u9", StartedAt: now},
		},
	}
	tracker := newTestTracker(backend, func(string) (string, bool) { return "", false })
	tracker.now = func() time.Time { return now }

	tracker.Refresh(context.Background())

	assert.Equal(t, "u9 is typing…", tracker.Summary())
}

func TestRefreshKeepsPreviousSummaryOnFetchError(t *testing.T) {
	now := time.Now().UTC()
	backend := &fakeTypingBackend{
		rows: []types.TypingRow{
			{ChannelID: "c1", UserID: "u2", StartedAt: now},
		},
	}
	tracker := newTestTracker(backend, nil)
	tracker.now = func() time.Time { return now }

	tracker.Refresh(context.Background())
	require.Equal(t, "u2 is typing…", tracker.Summary())

	backend.mu.Lock()
	backend.fetchErr = fmt.Errorf("network down")
	backend.mu.Unlock()

	tracker.Refresh(context.Background())
	assert.Equal(t, "u2 is typing…", tracker.Summary())
}

func TestHandleInputChangeAnnouncesWithDeleteThenInsert(t *testing.T) {
	backend := &fakeTypingBackend{}
	tracker := newTestTracker(backend, nil)
	defer tracker.Close(context.Background())

	tracker.HandleInputChange(context.Background(), "h")

	assert.True(t, tracker.IsAnnounced())
	assert.Equal(t, []string{"delete:self", "insert:self"}, backend.callLog())
}

func TestHandleInputChangeIgnoresEmptyText(t *testing.T) {
	backend := &fakeTypingBackend{}
	tracker := newTestTracker(backend, nil)

	tracker.HandleInputChange(context.Background(), "")

	assert.False(t, tracker.IsAnnounced())
	assert.Empty(t, backend.callLog())
}

func TestQuietTimeoutClearsAnnouncement(t *testing.T) {
	backend := &fakeTypingBackend{}
	tracker := newTestTracker(backend, nil)

	tracker.HandleInputChange(context.Background(), "hello")
	require.True(t, tracker.IsAnnounced())

	require.Eventually(t, func() bool {
		return !tracker.IsAnnounced()
	}, time.Second, 10*time.Millisecond)

	calls := backend.callLog()
	assert.Equal(t, "delete:self", calls[len(calls)-1])
}

func TestStopTypingIsNoopWhenNotAnnounced(t *testing.T) {
	backend := &fakeTypingBackend{}
	tracker := newTestTracker(backend, nil)

	tracker.StopTyping(context.Background())

	assert.Empty(t, backend.callLog())
}

func TestStartPollingRefreshesSummary(t *testing.T) {
	now := time.Now().UTC()
	backend := &fakeTypingBackend{
		rows: []types.TypingRow{
			{ChannelID: "c1", UserID: "u2", StartedAt: now},
		},
	}
	tracker := NewTypingTracker("c1", "self", backend, nil,
		5*time.Second, time.Second, 20*time.Millisecond, quietLogger())
	tracker.now = func() time.Time { return now }

	tracker.StartPolling(context.Background())
	defer tracker.Close(context.Background())

	require.Eventually(t, func() bool {
		return tracker.Summary() == "u2 is typing…"
	}, time.Second, 10*time.Millisecond)
}

func TestCloseClearsAnnouncement(t *testing.T) {
	backend := &fakeTypingBackend{}
	tracker := newTestTracker(backend, nil)

	tracker.HandleInputChange(context.Background(), "typing")
	require.True(t, tracker.IsAnnounced())

	tracker.Close(context.Background())

	assert.False(t, tracker.IsAnnounced())
	calls := backend.callLog()
	assert.Equal(t, "delete:self", calls[len(calls)-1])
}
