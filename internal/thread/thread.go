// Package thread structures a flat comment list into threads, tallies
// reactions and assigns author colours.
package thread

import (
	"sort"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// Thread groups a top-level comment with its replies, both ordered by
// creation time.
type Thread struct {
	Root    model.Comment   `json:"root"`
	Replies []model.Comment `json:"replies"`
}

// TopLevel returns the anchored comments without a parent, oldest first.
// Ties keep the input order.
func TopLevel(comments []model.Comment) []model.Comment {
	out := make([]model.Comment, 0, len(comments))
	for _, c := range comments {
		if !c.IsReply() && c.Anchored() {
			out = append(out, c)
		}
	}
	sortByCreated(out)
	return out
}

// RepliesOf returns the replies to parentID, oldest first.
func RepliesOf(comments []model.Comment, parentID string) []model.Comment {
	out := make([]model.Comment, 0)
	for _, c := range comments {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	sortByCreated(out)
	return out
}

// Build returns one Thread per top-level comment.
func Build(comments []model.Comment) []Thread {
	roots := TopLevel(comments)
	threads := make([]Thread, 0, len(roots))
	for _, root := range roots {
		threads = append(threads, Thread{Root: root, Replies: RepliesOf(comments, root.ID)})
	}
	return threads
}

func sortByCreated(comments []model.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
