package models

import "time"

// TypingPresence is an ephemeral typing record. Rows have no native expiry
// in the backend; consumers apply the freshness window at read time.
type TypingPresence struct {
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadReceipt is one member's read cursor for a channel.
type ReadReceipt struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	LastReadAt  time.Time `json:"lastReadAt"`
}

// ChannelMember is a member summary used for mention extraction and
// display-name resolution.
type ChannelMember struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}
