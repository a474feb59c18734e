package service

import (
	"sort"
	"strings"

	"chatsync/internal/models"
)

// ExtractMentions parses @name tokens in outgoing content against the
// channel member list and returns structured mention metadata. Extraction
// happens once at send time and is persisted, so rendering never re-parses
// ambiguous text. Longest display names match first so "@Ann Lee" is not
// shadowed by a member named "Ann".
func ExtractMentions(content string, members []models.ChannelMember) []models.Mention {
	if content == "" || len(members) == 0 {
		return nil
	}

	candidates := make([]models.ChannelMember, 0, len(members))
	for _, m := range members {
		if m.DisplayName != "" {
			candidates = append(candidates, m)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].DisplayName) > len(candidates[j].DisplayName)
	})

	var mentions []models.Mention
	seen := make(map[string]bool)

	for i := 0; i < len(content); i++ {
		if content[i] != '@' {
			continue
		}
		rest := content[i+1:]
		for _, member := range candidates {
			if !strings.HasPrefix(rest, member.DisplayName) {
				continue
			}
			// The name must end at a word boundary so "@Ann" does not
			// match inside "@Annabel".
			end := len(member.DisplayName)
			if end < len(rest) && isNameChar(rest[end]) {
				continue
			}
			if !seen[member.UserID] {
				seen[member.UserID] = true
				mentions = append(mentions, models.Mention{UserID: member.UserID, Name: member.DisplayName})
			}
			i += end
			break
		}
	}
	return mentions
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
