package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatsync/pkg/backend/types"
	"chatsync/pkg/realtime"
)

// fakeBackend is an in-memory types.Client backed by mutable row tables, so
// session tests can stage server state and inspect writes.
type fakeBackend struct {
	mu          sync.Mutex
	messages    []types.MessageRow
	reactions   []types.ReactionRow
	attachments []types.AttachmentRow
	members     []types.MemberRow
	typing      []types.TypingRow

	fetchErr  error
	createErr error

	nextID      int
	lastReads   map[string]time.Time
	deletes     []string
	reactionOps []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{lastReads: make(map[string]time.Time)}
}

func (f *fakeBackend) FetchMessages(ctx context.Context, channelID string) ([]types.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []types.MessageRow
	for _, row := range f.messages {
		if row.ChannelID == channelID && !row.IsDeleted {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeBackend) FetchMessage(ctx context.Context, channelID, messageID string) (*types.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	for _, row := range f.messages {
		if row.ID == messageID {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) FetchReactions(ctx context.Context, messageIDs []string) ([]types.ReactionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var out []types.ReactionRow
	for _, row := range f.reactions {
		if wanted[row.MessageID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeBackend) FetchAttachments(ctx context.Context, messageIDs []string) ([]types.AttachmentRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var out []types.AttachmentRow
	for _, row := range f.attachments {
		if wanted[row.MessageID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeBackend) FetchMembers(ctx context.Context, channelID string) ([]types.MemberRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.MemberRow(nil), f.members...), nil
}

func (f *fakeBackend) FetchTyping(ctx context.Context, channelID string) ([]types.TypingRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.TypingRow(nil), f.typing...), nil
}

func (f *fakeBackend) CreateMessage(ctx context.Context, req types.CreateMessageRequest) (*types.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	row := types.MessageRow{
		ID:        fmt.Sprintf("srv-%d", f.nextID),
		ChannelID: req.ChannelID,
		SenderID:  req.SenderID,
		Type:      req.Type,
		Content:   req.Content,
		ReplyToID: req.ReplyToID,
		Mentions:  req.Mentions,
		CreatedAt: time.Now().UTC(),
	}
	f.messages = append(f.messages, row)
	for _, att := range req.Attachments {
		att.MessageID = row.ID
		f.attachments = append(f.attachments, att)
	}
	return &row, nil
}

func (f *fakeBackend) AddReaction(ctx context.Context, channelID, messageID, userID, reactionType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionOps = append(f.reactionOps, "add:"+messageID+":"+reactionType)
	f.reactions = append(f.reactions, types.ReactionRow{
		MessageID: messageID, UserID: userID, ReactionType: reactionType, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeBackend) RemoveReaction(ctx context.Context, channelID, messageID, userID, reactionType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionOps = append(f.reactionOps, "remove:"+messageID+":"+reactionType)
	kept := f.reactions[:0]
	for _, row := range f.reactions {
		if row.MessageID == messageID && row.UserID == userID && row.ReactionType == reactionType {
			continue
		}
		kept = append(kept, row)
	}
	f.reactions = kept
	return nil
}

func (f *fakeBackend) SoftDeleteMessage(ctx context.Context, channelID, messageID, actorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].IsDeleted = true
		}
	}
	return nil
}

func (f *fakeBackend) InsertTyping(ctx context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, types.TypingRow{ChannelID: channelID, UserID: userID, StartedAt: time.Now().UTC()})
	return nil
}

func (f *fakeBackend) DeleteTyping(ctx context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.typing[:0]
	for _, row := range f.typing {
		if row.ChannelID == channelID && row.UserID == userID {
			continue
		}
		kept = append(kept, row)
	}
	f.typing = kept
	return nil
}

func (f *fakeBackend) UpdateLastRead(ctx context.Context, channelID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReads[userID] = at
	return nil
}

var _ types.Client = (*fakeBackend)(nil)

// fakeSubscriber hands the session's event handler back to the test so it
// can inject change events as if they came off the wire.
type fakeSubscriber struct {
	mu      sync.Mutex
	handler realtime.Handler
	closed  bool
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, channelID string, handler realtime.Handler) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return f, nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSubscriber) push(event types.ChangeEvent) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}
