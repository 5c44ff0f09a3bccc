package thread

import (
	"sort"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// Emojis is the fixed reaction set, in display order.
var Emojis = []string{"👍", "❤️", "🎉", "👀", "🚀", "😄"}

// IsAllowedEmoji reports whether emoji belongs to the reaction set.
func IsAllowedEmoji(emoji string) bool {
	return emojiRank(emoji) < len(Emojis)
}

func emojiRank(emoji string) int {
	for i, e := range Emojis {
		if e == emoji {
			return i
		}
	}
	return len(Emojis)
}

// ReactionGroup is the tally of one emoji on one comment.
type ReactionGroup struct {
	Emoji            string   `json:"emoji"`
	Count            int      `json:"count"`
	ViewerHasReacted bool     `json:"viewerHasReacted"`
	Usernames        []string `json:"usernames"`
}

// GroupReactions tallies the reactions on commentID by emoji. Groups follow
// the order of Emojis; emojis outside the set sort last by first appearance.
func GroupReactions(reactions []model.Reaction, commentID, viewerID string) []ReactionGroup {
	index := make(map[string]int)
	groups := make([]ReactionGroup, 0)
	for _, r := range reactions {
		if r.CommentID != commentID {
			continue
		}
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		groups[i].Usernames = append(groups[i].Usernames, r.Username)
		if viewerID != "" && r.UserID == viewerID {
			groups[i].ViewerHasReacted = true
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return emojiRank(groups[i].Emoji) < emojiRank(groups[j].Emoji)
	})
	return groups
}

// ToggleReaction flips the presence of (commentID, viewer, emoji) in
// reactions and returns the new set. The input slice is not modified.
func ToggleReaction(reactions []model.Reaction, commentID, emoji string, viewer model.Author) []model.Reaction {
	out := make([]model.Reaction, 0, len(reactions)+1)
	removed := false
	for _, r := range reactions {
		if r.CommentID == commentID && r.UserID == viewer.UserID && r.Emoji == emoji {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if removed {
		return out
	}
	return append(out, model.Reaction{
		CommentID: commentID,
		UserID:    viewer.UserID,
		Username:  viewer.Username,
		Emoji:     emoji,
	})
}
