package models

import "time"

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeVideo  MessageType = "video"
	MessageTypeGif    MessageType = "gif"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeSystem MessageType = "system"
)

// Sender is a denormalized sender snapshot taken at assembly time, never
// re-fetched per render.
type Sender struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// ReactionAggregate groups raw per-user reaction rows by reaction type.
// Count equals the number of distinct raw rows in the group and
// CurrentUserReacted is true iff the viewing user contributed one of them.
type ReactionAggregate struct {
	ReactionType       string `json:"reactionType"`
	Count              int    `json:"count"`
	CurrentUserReacted bool   `json:"currentUserReacted"`
}

// Attachment is one file attached to a message. A voice message carries
// exactly one attachment with DurationSeconds set.
type Attachment struct {
	FileURL         string `json:"fileUrl"`
	AttachmentType  string `json:"attachmentType"`
	Width           *int   `json:"width,omitempty"`
	Height          *int   `json:"height,omitempty"`
	DurationSeconds *int   `json:"durationSeconds,omitempty"`
}

// Mention is structured @-mention metadata extracted at send time.
type Mention struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// ReplyPreview is the inline preview of a reply target. Omitted when the
// target is unknown to both the fetch batch and the store.
type ReplyPreview struct {
	Content    string `json:"content"`
	SenderName string `json:"senderName"`
}

// Message is the immutable-once-built per-message view model the rendering
// layer consumes. Within a channel store, ID is unique and the rendered
// sequence is always ascending by CreatedAt.
type Message struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channelId"`
	SenderID  string      `json:"senderId"`
	Type      MessageType `json:"type"`
	Content   *string     `json:"content,omitempty"`
	ReplyToID *string     `json:"replyToId,omitempty"`
	IsPinned  bool        `json:"isPinned"`
	IsEdited  bool        `json:"isEdited"`
	IsDeleted bool        `json:"isDeleted"`
	CreatedAt time.Time   `json:"createdAt"`

	Sender       Sender              `json:"sender"`
	Reactions    []ReactionAggregate `json:"reactions"`
	Attachments  []Attachment        `json:"attachments"`
	ReplyPreview *ReplyPreview       `json:"replyPreview,omitempty"`
	Mentions     []Mention           `json:"mentions,omitempty"`
}

// VoiceDuration returns the duration of a voice message's attachment, or
// zero when absent.
func (m Message) VoiceDuration() int {
	if m.Type != MessageTypeVoice {
		return 0
	}
	for _, a := range m.Attachments {
		if a.DurationSeconds != nil {
			return *a.DurationSeconds
		}
	}
	return 0
}
