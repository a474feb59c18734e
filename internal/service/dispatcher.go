package service

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/metrics"
	"chatsync/pkg/backend/types"

	"github.com/sirupsen/logrus"
)

// DispatcherCallbacks are the targeted reactions the dispatcher routes
// classified change events to. All callbacks are invoked off the caller's
// goroutine and must tolerate a torn-down session (they are never invoked
// after Close returns for debounced paths).
type DispatcherCallbacks struct {
	// FetchOne pulls a single pushed message row and upserts it.
	FetchOne func(ctx context.Context, messageID string)
	// Refetch reloads the channel's full, internally consistent snapshot.
	Refetch func(ctx context.Context)
	// RefreshReceipts reloads only the read cursors.
	RefreshReceipts func(ctx context.Context)
	// RefreshTyping re-derives the typing summary.
	RefreshTyping func(ctx context.Context)
}

// Dispatcher classifies realtime change events for one channel and routes
// them to targeted fetchers. Bursty event classes (edits, deletes, reaction
// toggles) collapse into one coalesced refetch per debounce window; a fresh
// qualifying event resets the pending timer instead of scheduling a second
// refetch.
type Dispatcher struct {
	channelID string
	selfID    string
	debounce  time.Duration
	callbacks DispatcherCallbacks
	logger    *logrus.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func NewDispatcher(channelID, selfID string, debounce time.Duration, callbacks DispatcherCallbacks, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		channelID: channelID,
		selfID:    selfID,
		debounce:  debounce,
		callbacks: callbacks,
		logger:    logger,
	}
}

// Handle classifies one change event. Safe to call from the realtime read
// loop; events arriving after Close are dropped.
func (d *Dispatcher) Handle(ctx context.Context, event types.ChangeEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	metrics.IncrementCounter("realtime_events_total", "Change events received")

	switch event.Table {
	case types.TableMessages:
		d.handleMessageEvent(ctx, event)
	case types.TableReactions:
		// Reaction toggles arrive in bursts; per-event refetching would
		// thrash the UI.
		d.scheduleRefetch(ctx)
	case types.TableMembership:
		if event.Op == types.OpUpdate && d.callbacks.RefreshReceipts != nil {
			go d.callbacks.RefreshReceipts(ctx)
		}
	case types.TableTyping:
		if d.callbacks.RefreshTyping != nil {
			go d.callbacks.RefreshTyping(ctx)
		}
	default:
		d.logger.WithField("table", event.Table).Debug("Ignoring change event for unknown table")
	}
}

func (d *Dispatcher) handleMessageEvent(ctx context.Context, event types.ChangeEvent) {
	switch event.Op {
	case types.OpInsert:
		// A brand-new message from someone else is cheap and
		// latency-sensitive: fetch just that row. Our own inserts are
		// already in the store from the optimistic send.
		if event.SenderID == d.selfID || event.IsDeleted {
			return
		}
		if event.RowID == "" {
			d.scheduleRefetch(ctx)
			return
		}
		metrics.IncrementCounter("single_row_fetches_total", "Targeted single-message fetches")
		if d.callbacks.FetchOne != nil {
			go d.callbacks.FetchOne(ctx, event.RowID)
		}
	case types.OpUpdate, types.OpDelete:
		d.scheduleRefetch(ctx)
	}
}

// scheduleRefetch arms (or re-arms) the coalescing timer.
func (d *Dispatcher) scheduleRefetch(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		metrics.IncrementCounter("refetches_coalesced_total", "Refetches absorbed by the debounce window")
	}

	d.timer = time.AfterFunc(d.debounce, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		metrics.IncrementCounter("refetches_total", "Coalesced full refetches executed")
		if d.callbacks.Refetch != nil {
			d.callbacks.Refetch(ctx)
		}
	})
}

// Close cancels any pending debounce timer. A timer callback racing Close
// re-checks the closed flag and becomes a no-op, so no refetch ever fires
// into a torn-down store.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
