package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatsync/internal/assemble"
	"chatsync/internal/cache"
	"chatsync/internal/constants"
	"chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/store"
	"chatsync/internal/tracing"
	"chatsync/pkg/backend/types"
	"chatsync/pkg/media"
	"chatsync/pkg/realtime"

	"github.com/sirupsen/logrus"
)

// SessionConfig wires one channel session together.
type SessionConfig struct {
	ChannelID  string
	Viewer     models.Sender
	Backend    types.Client
	Subscriber realtime.Subscriber
	// Cache is optional; a nil cache disables the offline snapshot.
	Cache    *cache.Cache
	Recorder media.Recorder
	Uploader media.Uploader
	Sync     models.SyncConfig
	// ScrollToEnd is invoked when the rendering layer should scroll the
	// list to its end. Optional.
	ScrollToEnd func()
	Logger      *logrus.Logger
}

// ChannelSession owns the canonical timeline for one open channel screen:
// the message store, the realtime dispatcher, typing presence, the voice
// recorder, and the viewport tracker. Exactly one session owns a channel's
// store at a time.
type ChannelSession struct {
	channelID  string
	viewer     models.Sender
	backend    types.Client
	subscriber realtime.Subscriber
	cache      *cache.Cache
	logger     *logrus.Logger
	syncCfg    models.SyncConfig

	store      *store.Store
	dispatcher *Dispatcher
	typing     *TypingTracker
	voice      *VoiceRecorder
	viewport   *ViewportTracker

	runCtx    context.Context
	runCancel context.CancelFunc

	mu           sync.RWMutex
	members      map[string]models.ChannelMember
	receipts     []models.ReadReceipt
	subscription realtime.Subscription
	opened       bool
}

func NewChannelSession(cfg SessionConfig) *ChannelSession {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	s := &ChannelSession{
		channelID:  cfg.ChannelID,
		viewer:     cfg.Viewer,
		backend:    cfg.Backend,
		subscriber: cfg.Subscriber,
		cache:      cfg.Cache,
		logger:     logger,
		syncCfg:    cfg.Sync,
		store:      store.New(),
		members:    make(map[string]models.ChannelMember),
	}

	s.viewport = NewViewportTracker(cfg.Sync.BottomThreshold, cfg.ScrollToEnd, s.advanceReadCursor, logger)

	s.typing = NewTypingTracker(
		cfg.ChannelID,
		cfg.Viewer.ID,
		cfg.Backend,
		s.resolveDisplayName,
		time.Duration(cfg.Sync.TypingFreshnessSec)*time.Second,
		time.Duration(cfg.Sync.TypingQuietTimeoutSec)*time.Second,
		time.Duration(cfg.Sync.TypingPollSec)*time.Second,
		logger,
	)

	s.voice = NewVoiceRecorder(cfg.Recorder, cfg.Uploader, s.createVoiceMessage, cfg.Sync.VoiceMaxDurationSec, logger)

	s.dispatcher = NewDispatcher(cfg.ChannelID, cfg.Viewer.ID, time.Duration(cfg.Sync.DebounceMs)*time.Millisecond, DispatcherCallbacks{
		FetchOne:        s.fetchOne,
		Refetch:         s.refetch,
		RefreshReceipts: s.refreshReceipts,
		RefreshTyping:   s.typing.Refresh,
	}, logger)

	return s
}

// Open loads the cached timeline, performs the initial fetch, subscribes to
// the channel's change stream, and starts the typing fallback poll. A
// failing initial fetch is not fatal: the cached snapshot stays on screen
// and the realtime stream self-heals consistency.
func (s *ChannelSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return fmt.Errorf("session for channel %s is already open", s.channelID)
	}
	s.opened = true
	s.mu.Unlock()

	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	if s.cache != nil {
		if cached, err := s.cache.LoadSnapshot(ctx, s.channelID); err != nil {
			errors.LogWarn(s.logger, errors.NewCacheError("load", err), "Could not load cached timeline")
		} else if len(cached) > 0 {
			s.store.ReplaceAll(cached)
			s.logger.WithField("messages", len(cached)).Debug("Rendered cached timeline")
		}
	}

	s.refreshReceipts(ctx)
	s.refetch(ctx)
	s.advanceReadCursor(ctx)

	// The append listener only becomes active once the initial snapshot is
	// in place, so history never counts as unread.
	s.store.SetAppendListener(func(m models.Message) {
		if m.SenderID == s.viewer.ID {
			return
		}
		s.viewport.HandleAppend(s.runCtx)
	})

	sub, err := s.subscriber.Subscribe(ctx, s.channelID, func(event types.ChangeEvent) {
		s.dispatcher.Handle(s.runCtx, event)
	})
	if err != nil {
		return errors.NewRealtimeError(err)
	}

	s.mu.Lock()
	s.subscription = sub
	s.mu.Unlock()

	s.typing.StartPolling(s.runCtx)

	s.logger.WithFields(logrus.Fields{
		"channelId": s.channelID,
		"viewer":    SanitizeUserID(s.viewer.ID),
	}).Info("Channel session opened")
	return nil
}

// Close tears the session down: unsubscribes, cancels the pending debounce
// timer and the typing poll, clears the viewer's presence row, and persists
// a final snapshot. Late realtime callbacks after Close are no-ops.
func (s *ChannelSession) Close(ctx context.Context) {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return
	}
	s.opened = false
	sub := s.subscription
	s.subscription = nil
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			errors.LogWarn(s.logger, err, "Failed to close change-event subscription")
		}
	}
	s.dispatcher.Close()
	s.typing.Close(ctx)
	if s.runCancel != nil {
		s.runCancel()
	}

	s.persistSnapshot(ctx)
	s.logger.WithField("channelId", s.channelID).Info("Channel session closed")
}

// Messages returns the rendered sequence: visible messages ascending by
// CreatedAt.
func (s *ChannelSession) Messages() []models.Message {
	return s.store.Visible()
}

// Typing exposes the typing tracker for composer input events.
func (s *ChannelSession) Typing() *TypingTracker { return s.typing }

// Voice exposes the voice capture pipeline.
func (s *ChannelSession) Voice() *VoiceRecorder { return s.voice }

// Viewport exposes the scroll/read tracker.
func (s *ChannelSession) Viewport() *ViewportTracker { return s.viewport }

// TypingSummary returns the current typing label, empty when nobody else is
// typing.
func (s *ChannelSession) TypingSummary() string {
	return s.typing.Summary()
}

// SendText creates a text message. The backend assigns the canonical id and
// createdAt synchronously, and the resulting view model is upserted
// optimistically before any push event arrives; the server's own echo event
// later dedupes against the same id.
func (s *ChannelSession) SendText(ctx context.Context, content string, replyToID *string) (models.Message, error) {
	if content == "" {
		return models.Message{}, errors.New(errors.ErrCodeInvalidInput, "message content is empty")
	}

	ctx, span := tracing.StartSpan(ctx, "session.send_text")
	defer span.End()

	mentions := ExtractMentions(content, s.memberList())

	req := types.CreateMessageRequest{
		ChannelID: s.channelID,
		SenderID:  s.viewer.ID,
		Type:      string(models.MessageTypeText),
		Content:   &content,
		ReplyToID: replyToID,
		Mentions:  mentionRows(mentions),
	}

	row, err := s.backend.CreateMessage(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return models.Message{}, errors.NewSendError("send", err)
	}

	msg := s.assembleOwn(*row)
	s.store.UpsertOne(msg)
	s.typing.StopTyping(ctx)
	metrics.IncrementCounter("messages_sent_total", "Messages sent by the viewer")

	return msg, nil
}

// ToggleReaction adds or removes the viewer's reaction of the given type.
// The write is fire-and-forget with respect to the aggregate: the resulting
// change event drives a coalesced refetch that restores consistency.
func (s *ChannelSession) ToggleReaction(ctx context.Context, messageID, reactionType string) error {
	msg, ok := s.store.Get(messageID)
	if !ok {
		return errors.NewNotFoundError("message", SanitizeMessageID(messageID))
	}

	reacted := false
	for _, agg := range msg.Reactions {
		if agg.ReactionType == reactionType && agg.CurrentUserReacted {
			reacted = true
			break
		}
	}

	var err error
	if reacted {
		err = s.backend.RemoveReaction(ctx, s.channelID, messageID, s.viewer.ID, reactionType)
	} else {
		err = s.backend.AddReaction(ctx, s.channelID, messageID, s.viewer.ID, reactionType)
	}
	if err != nil {
		return errors.NewSendError("reaction", err)
	}
	return nil
}

// DeleteMessage soft-deletes the viewer's message and tombstones it locally.
func (s *ChannelSession) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.backend.SoftDeleteMessage(ctx, s.channelID, messageID, s.viewer.ID); err != nil {
		return errors.NewSendError("delete", err)
	}
	s.store.MarkDeleted(messageID)
	return nil
}

// SeenBy returns the members whose read cursor has passed the viewer's most
// recent own message. Both timestamps are server-assigned, so client clock
// skew never enters the comparison.
func (s *ChannelSession) SeenBy() []models.ReadReceipt {
	latest, ok := s.store.LatestFrom(s.viewer.ID)
	if !ok {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var seen []models.ReadReceipt
	for _, r := range s.receipts {
		if r.UserID == s.viewer.ID {
			continue
		}
		if !r.LastReadAt.Before(latest.CreatedAt) {
			seen = append(seen, r)
		}
	}
	return seen
}

// refetch reloads the channel's full snapshot through the aggregation
// pipeline. Failures are swallowed: the previous (stale but internally
// consistent) timeline stays rendered and a later refetch self-heals.
func (s *ChannelSession) refetch(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, constants.RefetchTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "session.refetch")
	defer span.End()

	started := time.Now()

	rows, err := s.backend.FetchMessages(ctx, s.channelID)
	if err != nil {
		errors.LogWarn(s.logger, errors.WrapRetryable(err, errors.ErrCodeBackendAPI, "message fetch failed"), "Refetch failed, keeping stale timeline")
		return
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ID != "" {
			ids = append(ids, row.ID)
		}
	}

	reactions, err := s.backend.FetchReactions(ctx, ids)
	if err != nil {
		errors.LogWarn(s.logger, err, "Reaction fetch failed, keeping stale timeline")
		return
	}
	attachments, err := s.backend.FetchAttachments(ctx, ids)
	if err != nil {
		errors.LogWarn(s.logger, err, "Attachment fetch failed, keeping stale timeline")
		return
	}

	assembled := assemble.Assemble(rows, reactions, attachments, s.viewer.ID, s.store)
	s.store.ReplaceAll(assembled)

	metrics.RecordTimer("refetch_duration", time.Since(started))
	metrics.SetGauge("timeline_size", float64(len(assembled)), "Messages in the store after the last refetch")

	s.persistSnapshot(ctx)
}

// fetchOne pulls a single realtime-pushed message row plus its attachments.
// Duplicate delivery and the echo of an optimistic send both collapse in
// the store's id dedupe.
func (s *ChannelSession) fetchOne(ctx context.Context, messageID string) {
	ctx, cancel := context.WithTimeout(ctx, constants.SingleFetchTimeout)
	defer cancel()

	row, err := s.backend.FetchMessage(ctx, s.channelID, messageID)
	if err != nil {
		errors.LogWarn(s.logger, err, "Single-row fetch failed", logrus.Fields{
			"messageId": SanitizeMessageID(messageID),
		})
		return
	}
	if row == nil || row.IsDeleted {
		return
	}

	attachments, err := s.backend.FetchAttachments(ctx, []string{messageID})
	if err != nil {
		errors.LogWarn(s.logger, err, "Attachment fetch failed for pushed message")
		attachments = nil
	}

	msg := assemble.One(*row, attachments, s.store)
	if s.store.UpsertOne(msg) {
		metrics.IncrementCounter("messages_received_total", "Messages received via realtime push")
	}
}

// refreshReceipts reloads members and read cursors only, never messages.
func (s *ChannelSession) refreshReceipts(ctx context.Context) {
	rows, err := s.backend.FetchMembers(ctx, s.channelID)
	if err != nil {
		errors.LogWarn(s.logger, err, "Member fetch failed, keeping stale receipts")
		return
	}

	members := make(map[string]models.ChannelMember, len(rows))
	receipts := make([]models.ReadReceipt, 0, len(rows))
	for _, row := range rows {
		members[row.UserID] = models.ChannelMember{
			UserID:      row.UserID,
			DisplayName: row.DisplayName,
			AvatarURL:   row.AvatarURL,
		}
		receipts = append(receipts, models.ReadReceipt{
			UserID:      row.UserID,
			DisplayName: row.DisplayName,
			LastReadAt:  row.LastReadAt,
		})
	}

	s.mu.Lock()
	s.members = members
	s.receipts = receipts
	s.mu.Unlock()
}

// createVoiceMessage is the voice recorder's send hook: the artifact is
// already uploaded, so create the message row with its single attachment
// and upsert the result.
func (s *ChannelSession) createVoiceMessage(ctx context.Context, fileURL string, durationSeconds int) error {
	req := types.CreateMessageRequest{
		ChannelID: s.channelID,
		SenderID:  s.viewer.ID,
		Type:      string(models.MessageTypeVoice),
		Attachments: []types.AttachmentRow{{
			FileURL:         fileURL,
			AttachmentType:  "voice",
			DurationSeconds: &durationSeconds,
		}},
	}

	row, err := s.backend.CreateMessage(ctx, req)
	if err != nil {
		return err
	}

	msg := s.assembleOwn(*row)
	msg.Attachments = []models.Attachment{{
		FileURL:         fileURL,
		AttachmentType:  "voice",
		DurationSeconds: &durationSeconds,
	}}
	s.store.UpsertOne(msg)
	metrics.IncrementCounter("voice_messages_sent_total", "Voice messages sent by the viewer")
	return nil
}

// assembleOwn builds the optimistic view model for a row the viewer just
// created, filling the sender snapshot locally instead of waiting for the
// joined fetch.
func (s *ChannelSession) assembleOwn(row types.MessageRow) models.Message {
	if row.SenderName == "" {
		row.SenderName = s.viewer.DisplayName
		row.SenderAvatar = s.viewer.AvatarURL
	}
	return assemble.One(row, nil, s.store)
}

// advanceReadCursor persists the viewer's lastReadAt for the channel.
func (s *ChannelSession) advanceReadCursor(ctx context.Context) {
	if err := s.backend.UpdateLastRead(ctx, s.channelID, s.viewer.ID, time.Now().UTC()); err != nil {
		errors.LogWarn(s.logger, err, "Failed to advance read cursor")
	}
}

func (s *ChannelSession) persistSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveSnapshot(ctx, s.channelID, s.store.Visible()); err != nil {
		errors.LogWarn(s.logger, errors.NewCacheError("save", err), "Could not persist timeline snapshot")
	}
}

func (s *ChannelSession) resolveDisplayName(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[userID]
	if !ok {
		return "", false
	}
	return member.DisplayName, true
}

func (s *ChannelSession) memberList() []models.ChannelMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChannelMember, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out
}

func mentionRows(mentions []models.Mention) []types.MentionRow {
	if len(mentions) == 0 {
		return nil
	}
	out := make([]types.MentionRow, len(mentions))
	for i, m := range mentions {
		out[i] = types.MentionRow{UserID: m.UserID, Name: m.Name}
	}
	return out
}
