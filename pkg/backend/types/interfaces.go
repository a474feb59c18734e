package types

import (
	"context"
	"time"
)

// Client is the persistence collaborator for one backend store. All reads
// return internally consistent snapshots; writes are synchronous and return
// canonical server-assigned fields where noted.
type Client interface {
	// FetchMessages returns the channel's non-deleted messages ordered by
	// createdAt ascending, with sender summaries joined.
	FetchMessages(ctx context.Context, channelID string) ([]MessageRow, error)

	// FetchMessage returns a single message row by id, or nil when the row
	// no longer exists (deleted between push and fetch).
	FetchMessage(ctx context.Context, channelID, messageID string) (*MessageRow, error)

	// FetchReactions returns all reaction rows for the given message ids.
	FetchReactions(ctx context.Context, messageIDs []string) ([]ReactionRow, error)

	// FetchAttachments returns all attachment rows for the given message ids,
	// preserving per-message source order.
	FetchAttachments(ctx context.Context, messageIDs []string) ([]AttachmentRow, error)

	FetchMembers(ctx context.Context, channelID string) ([]MemberRow, error)
	FetchTyping(ctx context.Context, channelID string) ([]TypingRow, error)

	// CreateMessage inserts a message and returns the stored row with its
	// canonical id and createdAt.
	CreateMessage(ctx context.Context, req CreateMessageRequest) (*MessageRow, error)

	AddReaction(ctx context.Context, channelID, messageID, userID, reactionType string) error
	RemoveReaction(ctx context.Context, channelID, messageID, userID, reactionType string) error

	// SoftDeleteMessage flags a message deleted, recording the actor and time.
	SoftDeleteMessage(ctx context.Context, channelID, messageID, actorID string) error

	InsertTyping(ctx context.Context, channelID, userID string) error
	DeleteTyping(ctx context.Context, channelID, userID string) error

	UpdateLastRead(ctx context.Context, channelID, userID string, at time.Time) error
}
