// Package notify derives notification fan-out from workspace events:
// @-mentions in task messages, task assignment, and reviewer
// assignment. It also owns the live notification stream hub.
package notify

import (
	"strings"
	"unicode"

	"github.com/nhle/workboard/internal/model"
)

// AllToken is the reserved mention token that fans out to every
// workspace member except the message author.
const AllToken = "all"

// Mention is a resolved @-token found in message content.
type Mention struct {
	// Token is the raw token text after '@', without the sigil.
	Token string

	// IsAllMention marks the reserved @all token.
	IsAllMention bool

	// Member is the resolved member for a direct mention; nil for
	// @all mentions.
	Member *model.Member

	// AllMembers is the fan-out set for an @all mention, with the
	// author already excluded.
	AllMembers []model.Member
}

// ExtractMentions scans free-text content for @name tokens and
// resolves them against the workspace member list.
//
// Resolution policy, in order:
//  1. the reserved token "all" fans out to every member whose user is
//     not the author;
//  2. a member whose display name equals the token once both are
//     lowercased and whitespace-stripped wins outright;
//  3. otherwise the member with the shortest display name containing
//     the token (case-insensitive) wins.
//
// Unresolvable tokens are dropped. A member mentioned through several
// tokens appears once.
func ExtractMentions(content string, members []model.Member, authorUserID string) []Mention {
	var mentions []Mention
	seenAll := false
	seenMembers := make(map[string]bool)

	for _, token := range mentionTokens(content) {
		if strings.EqualFold(token, AllToken) {
			if seenAll {
				continue
			}
			seenAll = true
			mentions = append(mentions, Mention{
				Token:        token,
				IsAllMention: true,
				AllMembers:   excludeUser(members, authorUserID),
			})
			continue
		}

		member := resolveToken(token, members)
		if member == nil || seenMembers[member.ID] {
			continue
		}
		seenMembers[member.ID] = true
		mentions = append(mentions, Mention{Token: token, Member: member})
	}

	return mentions
}

// mentionTokens returns the raw tokens following each '@' in content.
func mentionTokens(content string) []string {
	var tokens []string
	runes := []rune(content)

	for i := 0; i < len(runes); i++ {
		if runes[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(runes) && isTokenRune(runes[j]) {
			j++
		}
		if j > i+1 {
			tokens = append(tokens, string(runes[i+1:j]))
		}
		i = j - 1
	}
	return tokens
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

// resolveToken picks the member a token refers to: exact
// whitespace-stripped name match first, then the shortest display
// name containing the token.
func resolveToken(token string, members []model.Member) *model.Member {
	needle := strings.ToLower(strings.TrimSpace(token))
	if needle == "" {
		return nil
	}

	var best *model.Member
	for i := range members {
		name := strings.ToLower(members[i].DisplayName)
		stripped := strings.Join(strings.Fields(name), "")
		if stripped == needle {
			return &members[i]
		}
		if !strings.Contains(name, needle) {
			continue
		}
		if best == nil || len(members[i].DisplayName) < len(best.DisplayName) {
			best = &members[i]
		}
	}
	return best
}

// excludeUser filters out the member rows belonging to userID.
func excludeUser(members []model.Member, userID string) []model.Member {
	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		if m.UserID == userID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// RecipientUserIDs flattens mentions into the deduplicated set of
// user IDs to notify, never including the author.
func RecipientUserIDs(mentions []Mention, authorUserID string) []string {
	seen := make(map[string]bool)
	var ids []string

	add := func(userID string) {
		if userID == authorUserID || seen[userID] {
			return
		}
		seen[userID] = true
		ids = append(ids, userID)
	}

	for _, m := range mentions {
		if m.IsAllMention {
			for _, member := range m.AllMembers {
				add(member.UserID)
			}
			continue
		}
		if m.Member != nil {
			add(m.Member.UserID)
		}
	}
	return ids
}
