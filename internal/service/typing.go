package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatsync/internal/errors"
	"chatsync/pkg/backend/types"

	"github.com/sirupsen/logrus"
)

// TypingBackend is the slice of the backend client the tracker writes
// presence rows through.
type TypingBackend interface {
	FetchTyping(ctx context.Context, channelID string) ([]types.TypingRow, error)
	InsertTyping(ctx context.Context, channelID, userID string) error
	DeleteTyping(ctx context.Context, channelID, userID string) error
}

// NameResolver maps a user id to a display name. Returns false when the
// user is unknown, in which case the id itself is shown.
type NameResolver func(userID string) (string, bool)

// TypingTracker maintains the viewer's own typing announcement and the
// aggregate summary of everyone else's. Presence rows have no native expiry,
// so freshness is an explicit age check at read time, and a fixed-interval
// poll re-derives the summary even when no push event arrives.
type TypingTracker struct {
	channelID    string
	selfID       string
	backend      TypingBackend
	resolveName  NameResolver
	freshness    time.Duration
	quietTimeout time.Duration
	pollInterval time.Duration
	logger       *logrus.Logger
	now          func() time.Time

	mu         sync.Mutex
	announced  bool
	quietTimer *time.Timer
	summary    string
	running    bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewTypingTracker(channelID, selfID string, backend TypingBackend, resolveName NameResolver, freshness, quietTimeout, pollInterval time.Duration, logger *logrus.Logger) *TypingTracker {
	return &TypingTracker{
		channelID:    channelID,
		selfID:       selfID,
		backend:      backend,
		resolveName:  resolveName,
		freshness:    freshness,
		quietTimeout: quietTimeout,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// HandleInputChange announces the viewer as typing on any non-empty input
// change. Announcing is a delete-then-insert of the viewer's own presence
// row so repeated keystrokes refresh the TTL without accumulating
// duplicates. The announcement auto-clears after the quiet timeout.
func (t *TypingTracker) HandleInputChange(ctx context.Context, text string) {
	if text == "" {
		return
	}

	t.mu.Lock()
	t.announced = true
	if t.quietTimer != nil {
		t.quietTimer.Stop()
	}
	t.quietTimer = time.AfterFunc(t.quietTimeout, func() {
		t.StopTyping(context.Background())
	})
	t.mu.Unlock()

	if err := t.backend.DeleteTyping(ctx, t.channelID, t.selfID); err != nil {
		errors.LogWarn(t.logger, err, "Failed to clear previous typing row")
	}
	if err := t.backend.InsertTyping(ctx, t.channelID, t.selfID); err != nil {
		errors.LogWarn(t.logger, err, "Failed to announce typing")
	}
}

// StopTyping clears the viewer's announcement immediately (send, timeout,
// or screen exit).
func (t *TypingTracker) StopTyping(ctx context.Context) {
	t.mu.Lock()
	wasAnnounced := t.announced
	t.announced = false
	if t.quietTimer != nil {
		t.quietTimer.Stop()
		t.quietTimer = nil
	}
	t.mu.Unlock()

	if !wasAnnounced {
		return
	}
	if err := t.backend.DeleteTyping(ctx, t.channelID, t.selfID); err != nil {
		errors.LogWarn(t.logger, err, "Failed to clear typing row")
	}
}

// IsAnnounced reports whether the viewer currently has a live announcement.
func (t *TypingTracker) IsAnnounced() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.announced
}

// Refresh re-derives the typing summary from the backend's presence rows.
// Fetch failures leave the previous summary in place; the next poll
// self-heals.
func (t *TypingTracker) Refresh(ctx context.Context) {
	rows, err := t.backend.FetchTyping(ctx, t.channelID)
	if err != nil {
		errors.LogWarn(t.logger, err, "Failed to fetch typing presence")
		return
	}

	now := t.now()
	var names []string
	for _, row := range rows {
		if row.UserID == t.selfID {
			continue
		}
		if now.Sub(row.StartedAt) >= t.freshness {
			continue
		}
		name := row.UserID
		if t.resolveName != nil {
			if resolved, ok := t.resolveName(row.UserID); ok {
				name = resolved
			}
		}
		names = append(names, name)
	}

	t.mu.Lock()
	t.summary = FormatTypingLabel(names)
	t.mu.Unlock()
}

// Summary returns the current display label, empty when nobody is typing.
func (t *TypingTracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// StartPolling runs the fallback poll that keeps the summary fresh even
// when presence rows expire without a push notification.
func (t *TypingTracker) StartPolling(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.Refresh(ctx)
			}
		}
	}()
}

// Close stops the poll and clears the viewer's announcement.
func (t *TypingTracker) Close(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.running = false
		close(t.stopCh)
	}
	t.mu.Unlock()

	t.wg.Wait()
	t.StopTyping(ctx)
}

// FormatTypingLabel renders the presence display rule: one name spelled
// out, two names joined, three or more collapsed into a count.
func FormatTypingLabel(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing…", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing…", names[0], names[1])
	default:
		return fmt.Sprintf("%s and %d others are typing…", names[0], len(names)-1)
	}
}
