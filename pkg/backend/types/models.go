package types

import "time"

// MessageRow is a raw message row as returned by the backend store, joined
// with a denormalized sender summary. Rows are validated and narrowed into
// strict view models at the assembly boundary; nothing inside the core
// operates on these directly.
type MessageRow struct {
	ID           string       `json:"id"`
	ChannelID    string       `json:"channelId"`
	SenderID     string       `json:"senderId"`
	Type         string       `json:"type"`
	Content      *string      `json:"content,omitempty"`
	ReplyToID    *string      `json:"replyToId,omitempty"`
	IsPinned     bool         `json:"isPinned"`
	IsEdited     bool         `json:"isEdited"`
	IsDeleted    bool         `json:"isDeleted"`
	CreatedAt    time.Time    `json:"createdAt"`
	SenderName   string       `json:"senderName"`
	SenderAvatar string       `json:"senderAvatarUrl,omitempty"`
	Mentions     []MentionRow `json:"mentions,omitempty"`
}

// MentionRow is structured mention metadata persisted at send time so
// rendering never re-parses message text.
type MentionRow struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// ReactionRow is one user's reaction to one message.
type ReactionRow struct {
	MessageID    string    `json:"messageId"`
	UserID       string    `json:"userId"`
	ReactionType string    `json:"reactionType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AttachmentRow is a raw attachment row; ordering within a message follows
// the backend's row order.
type AttachmentRow struct {
	MessageID       string `json:"messageId"`
	FileURL         string `json:"fileUrl"`
	AttachmentType  string `json:"attachmentType"`
	Width           *int   `json:"width,omitempty"`
	Height          *int   `json:"height,omitempty"`
	DurationSeconds *int   `json:"durationSeconds,omitempty"`
}

// MemberRow is a channel member with their read cursor.
type MemberRow struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	LastReadAt  time.Time `json:"lastReadAt"`
}

// TypingRow is an ephemeral typing-presence record. The backend has no
// native expiry for these; freshness is an age check at read time.
type TypingRow struct {
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId"`
	StartedAt time.Time `json:"startedAt"`
}

// CreateMessageRequest creates a message row. The backend assigns the
// canonical id and createdAt and returns them synchronously, before any
// change event for the insert is pushed.
type CreateMessageRequest struct {
	ChannelID   string          `json:"channelId"`
	SenderID    string          `json:"senderId"`
	Type        string          `json:"type"`
	Content     *string         `json:"content,omitempty"`
	ReplyToID   *string         `json:"replyToId,omitempty"`
	Mentions    []MentionRow    `json:"mentions,omitempty"`
	Attachments []AttachmentRow `json:"attachments,omitempty"`
}

// Change-event tables and operations, as delivered by the realtime stream.
const (
	TableMessages   = "messages"
	TableReactions  = "message_reactions"
	TableMembership = "channel_members"
	TableTyping     = "typing_presence"

	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent is a typed row-level change notification for a channel.
// Delivery order is not guaranteed to match server commit order.
type ChangeEvent struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	ChannelID string `json:"channelId"`
	RowID     string `json:"rowId,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
	IsDeleted bool   `json:"isDeleted,omitempty"`
}
