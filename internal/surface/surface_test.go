package surface

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

var t0 = time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

const artifactID = "jsc/26-02-w1/swea-2005"

func comment(id, author string, line, column int, parent string, minute int) model.Comment {
	c := model.Comment{
		ID:         id,
		ArtifactID: artifactID,
		Author:     model.Author{UserID: "u-" + author, Username: author},
		Content:    "content of " + id,
		CreatedAt:  t0.Add(time.Duration(minute) * time.Minute),
	}
	c.UpdatedAt = c.CreatedAt
	if line > 0 {
		l, col := line, column
		c.LineNumber = &l
		c.Column = &col
	}
	if parent != "" {
		p := parent
		c.ParentID = &p
	}
	return c
}

// fakeBackend serves comments from memory. insertErr makes every insert
// fail.
type fakeBackend struct {
	mu        sync.Mutex
	comments  []model.Comment
	reactions []model.Reaction
	seq       int
	inserts   int
	insertErr error
	handler   func(model.Change)
	released  int
}

func (f *fakeBackend) ListComments(context.Context, string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Comment(nil), f.comments...), nil
}

func (f *fakeBackend) ListReactions(context.Context, string) ([]model.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Reaction(nil), f.reactions...), nil
}

func (f *fakeBackend) InsertComment(_ context.Context, in store.NewComment) (model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return model.Comment{}, f.insertErr
	}
	f.seq++
	at := t0.Add(time.Hour + time.Duration(f.seq)*time.Minute)
	c := model.Comment{
		ID:         fmt.Sprintf("new%d", f.seq),
		ArtifactID: in.ArtifactID,
		Author:     in.Author,
		Content:    in.Content,
		LineNumber: in.LineNumber,
		Column:     in.Column,
		ParentID:   in.ParentID,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	f.comments = append(f.comments, c)
	return c, nil
}

func (f *fakeBackend) UpdateComment(context.Context, string, string, string) (model.Comment, error) {
	return model.Comment{}, errors.New("not used")
}

func (f *fakeBackend) DeleteComment(context.Context, string, string) (model.Comment, error) {
	return model.Comment{}, errors.New("not used")
}

func (f *fakeBackend) ToggleReaction(_ context.Context, commentID string, user model.Author, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.reactions)
	f.reactions = thread.ToggleReaction(f.reactions, commentID, emoji, user)
	return len(f.reactions) > before, nil
}

func (f *fakeBackend) SubscribeArtifact(_ context.Context, _ string, onChange func(model.Change)) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = onChange
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.released++
		f.handler = nil
	}, nil
}

func (f *fakeBackend) fire(change model.Change) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(change)
	}
}

func (f *fakeBackend) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}
