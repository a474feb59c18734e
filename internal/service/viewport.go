package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ViewportTracker decides between auto-scroll and the "N new messages"
// affordance, and advances the viewer's read cursor whenever they reach the
// bottom of the timeline.
type ViewportTracker struct {
	threshold     float64
	scrollToEnd   func()
	advanceCursor func(ctx context.Context)
	logger        *logrus.Logger

	mu       sync.Mutex
	atBottom bool
	unread   int
}

func NewViewportTracker(threshold float64, scrollToEnd func(), advanceCursor func(ctx context.Context), logger *logrus.Logger) *ViewportTracker {
	return &ViewportTracker{
		threshold:     threshold,
		scrollToEnd:   scrollToEnd,
		advanceCursor: advanceCursor,
		logger:        logger,
		// A freshly opened channel starts scrolled to the latest message.
		atBottom: true,
	}
}

// HandleViewportChange ingests new viewport geometry. Crossing into the
// at-bottom zone by any means clears the unread counter and advances the
// persisted read cursor.
func (vt *ViewportTracker) HandleViewportChange(ctx context.Context, distanceFromBottom float64) {
	vt.mu.Lock()
	wasAtBottom := vt.atBottom
	vt.atBottom = distanceFromBottom <= vt.threshold
	crossedIn := vt.atBottom && !wasAtBottom
	if crossedIn {
		vt.unread = 0
	}
	vt.mu.Unlock()

	if crossedIn && vt.advanceCursor != nil {
		vt.advanceCursor(ctx)
	}
}

// HandleAppend reacts to a new message landing in the store: auto-scroll
// while pinned to the bottom, otherwise grow the unread counter.
func (vt *ViewportTracker) HandleAppend(ctx context.Context) {
	vt.mu.Lock()
	atBottom := vt.atBottom
	if !atBottom {
		vt.unread++
	}
	unread := vt.unread
	vt.mu.Unlock()

	if atBottom {
		if vt.scrollToEnd != nil {
			vt.scrollToEnd()
		}
		if vt.advanceCursor != nil {
			vt.advanceCursor(ctx)
		}
		return
	}
	vt.logger.WithField("unread", unread).Debug("Message arrived while scrolled away")
}

// JumpToBottom is the manual "N new messages" action: forces the scroll,
// resets the counter, and advances the read cursor.
func (vt *ViewportTracker) JumpToBottom(ctx context.Context) {
	vt.mu.Lock()
	vt.atBottom = true
	vt.unread = 0
	vt.mu.Unlock()

	if vt.scrollToEnd != nil {
		vt.scrollToEnd()
	}
	if vt.advanceCursor != nil {
		vt.advanceCursor(ctx)
	}
}

// IsAtBottom reports whether the viewport is pinned to the latest message.
func (vt *ViewportTracker) IsAtBottom() bool {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.atBottom
}

// UnreadCount returns the current "N new messages" counter.
func (vt *ViewportTracker) UnreadCount() int {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.unread
}
