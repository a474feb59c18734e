// Package assemble joins raw backend rows into immutable per-message view
// models. Everything here is pure: inputs are never mutated and every call
// returns fresh values.
package assemble

import (
	"chatsync/internal/models"
	"chatsync/pkg/backend/types"
)

// Index resolves already-known messages so reply previews inside a channel
// never need a second network round trip. The message store satisfies this.
type Index interface {
	Get(id string) (models.Message, bool)
}

// emptyIndex is used when no store is available (first fetch of a session).
type emptyIndex struct{}

func (emptyIndex) Get(string) (models.Message, bool) { return models.Message{}, false }

// EmptyIndex returns an Index that knows nothing.
func EmptyIndex() Index { return emptyIndex{} }

type reactionGroup struct {
	order  []string
	byType map[string]*models.ReactionAggregate
}

// Assemble builds view models for a batch of raw message rows. Malformed
// rows (missing id) are skipped, never fatal. Reply targets are resolved
// against the batch first, then against known; unresolvable targets simply
// omit the preview.
func Assemble(rawMessages []types.MessageRow, rawReactions []types.ReactionRow, rawAttachments []types.AttachmentRow, viewerID string, known Index) []models.Message {
	if known == nil {
		known = EmptyIndex()
	}

	msgLookup := make(map[string]types.MessageRow, len(rawMessages))
	for _, row := range rawMessages {
		if row.ID == "" {
			continue
		}
		msgLookup[row.ID] = row
	}

	reactionsByMsg := groupReactions(rawReactions, viewerID)
	attachmentsByMsg := groupAttachments(rawAttachments)

	out := make([]models.Message, 0, len(msgLookup))
	for _, row := range rawMessages {
		if row.ID == "" {
			continue
		}
		out = append(out, build(row, reactionsByMsg[row.ID], attachmentsByMsg[row.ID], msgLookup, known))
	}
	return out
}

// One assembles a single realtime-pushed row with its attachments. Reaction
// rows for a brand-new message cannot exist yet, so none are taken.
func One(row types.MessageRow, rawAttachments []types.AttachmentRow, known Index) models.Message {
	if known == nil {
		known = EmptyIndex()
	}
	attachmentsByMsg := groupAttachments(rawAttachments)
	return build(row, nil, attachmentsByMsg[row.ID], nil, known)
}

func build(row types.MessageRow, reactions *reactionGroup, attachments []models.Attachment, batch map[string]types.MessageRow, known Index) models.Message {
	msg := models.Message{
		ID:        row.ID,
		ChannelID: row.ChannelID,
		SenderID:  row.SenderID,
		Type:      models.MessageType(row.Type),
		Content:   copyString(row.Content),
		ReplyToID: copyString(row.ReplyToID),
		IsPinned:  row.IsPinned,
		IsEdited:  row.IsEdited,
		IsDeleted: row.IsDeleted,
		CreatedAt: row.CreatedAt,
		Sender: models.Sender{
			ID:          row.SenderID,
			DisplayName: row.SenderName,
			AvatarURL:   row.SenderAvatar,
		},
		Reactions:   flattenReactions(reactions),
		Attachments: attachments,
	}

	for _, m := range row.Mentions {
		msg.Mentions = append(msg.Mentions, models.Mention{UserID: m.UserID, Name: m.Name})
	}

	if row.ReplyToID != nil {
		msg.ReplyPreview = resolveReply(*row.ReplyToID, batch, known)
	}
	return msg
}

func groupReactions(rows []types.ReactionRow, viewerID string) map[string]*reactionGroup {
	grouped := make(map[string]*reactionGroup)
	for _, row := range rows {
		if row.MessageID == "" || row.ReactionType == "" {
			continue
		}
		group := grouped[row.MessageID]
		if group == nil {
			group = &reactionGroup{byType: make(map[string]*models.ReactionAggregate)}
			grouped[row.MessageID] = group
		}
		agg := group.byType[row.ReactionType]
		if agg == nil {
			agg = &models.ReactionAggregate{ReactionType: row.ReactionType}
			group.byType[row.ReactionType] = agg
			// First-seen order keeps the aggregate list stable across
			// refetches so the UI never flickers.
			group.order = append(group.order, row.ReactionType)
		}
		agg.Count++
		if row.UserID == viewerID {
			agg.CurrentUserReacted = true
		}
	}
	return grouped
}

func flattenReactions(group *reactionGroup) []models.ReactionAggregate {
	if group == nil {
		return nil
	}
	out := make([]models.ReactionAggregate, 0, len(group.order))
	for _, reactionType := range group.order {
		out = append(out, *group.byType[reactionType])
	}
	return out
}

func groupAttachments(rows []types.AttachmentRow) map[string][]models.Attachment {
	grouped := make(map[string][]models.Attachment)
	for _, row := range rows {
		if row.MessageID == "" {
			continue
		}
		grouped[row.MessageID] = append(grouped[row.MessageID], models.Attachment{
			FileURL:         row.FileURL,
			AttachmentType:  row.AttachmentType,
			Width:           copyInt(row.Width),
			Height:          copyInt(row.Height),
			DurationSeconds: copyInt(row.DurationSeconds),
		})
	}
	return grouped
}

func resolveReply(replyToID string, batch map[string]types.MessageRow, known Index) *models.ReplyPreview {
	if target, ok := batch[replyToID]; ok && !target.IsDeleted {
		content := ""
		if target.Content != nil {
			content = *target.Content
		}
		return &models.ReplyPreview{Content: content, SenderName: target.SenderName}
	}
	// Tombstoned targets get no preview, same as unknown ones.
	if target, ok := known.Get(replyToID); ok && !target.IsDeleted {
		content := ""
		if target.Content != nil {
			content = *target.Content
		}
		return &models.ReplyPreview{Content: content, SenderName: target.Sender.DisplayName}
	}
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
