package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TWLS151/Soootudy-sub000/internal/auth"
	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/config"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

const (
	testSecret   = "test-secret"
	testArtifact = "jsc/26-02-w1/swea-2005"
)

var (
	t0    = time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	alice = model.Author{UserID: "u-alice", Username: "alice"}
	bob   = model.Author{UserID: "u-bob", Username: "bob"}
)

// fakeBackend keeps rows in memory. The Fn fields replace individual calls.
type fakeBackend struct {
	mu            sync.Mutex
	comments      []model.Comment
	reactions     []model.Reaction
	notifications []model.Notification
	seq           int
	handlers      map[string]func(model.Change)
	released      int

	insertCommentFn     func(context.Context, store.NewComment) (model.Comment, error)
	listNotificationsFn func(context.Context, string, int) ([]model.Notification, error)
	subscribeErr        error
}

func (f *fakeBackend) ListComments(_ context.Context, artifactID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Comment
	for _, c := range f.comments {
		if c.ArtifactID == artifactID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListReactions(context.Context, string) ([]model.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Reaction(nil), f.reactions...), nil
}

func (f *fakeBackend) GetComment(_ context.Context, commentID string) (model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.comments {
		if c.ID == commentID {
			return c, nil
		}
	}
	return model.Comment{}, backend.ErrNotFound
}

func (f *fakeBackend) InsertComment(ctx context.Context, in store.NewComment) (model.Comment, error) {
	if f.insertCommentFn != nil {
		return f.insertCommentFn(ctx, in)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	at := t0.Add(time.Duration(f.seq) * time.Minute)
	c := model.Comment{
		ID:         fmt.Sprintf("c%d", f.seq),
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

func (f *fakeBackend) UpdateComment(_ context.Context, commentID, userID, content string) (model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID != commentID {
			continue
		}
		if c.Author.UserID != userID {
			return model.Comment{}, backend.ErrForbidden
		}
		f.comments[i].Content = content
		f.comments[i].UpdatedAt = c.UpdatedAt.Add(time.Second)
		return c, nil
	}
	return model.Comment{}, backend.ErrNotFound
}

func (f *fakeBackend) DeleteComment(_ context.Context, commentID, userID string) (model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID != commentID {
			continue
		}
		if c.Author.UserID != userID {
			return model.Comment{}, backend.ErrForbidden
		}
		f.comments = append(f.comments[:i], f.comments[i+1:]...)
		return c, nil
	}
	return model.Comment{}, backend.ErrNotFound
}

func (f *fakeBackend) ToggleReaction(_ context.Context, commentID string, user model.Author, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.reactions)
	f.reactions = thread.ToggleReaction(f.reactions, commentID, emoji, user)
	return len(f.reactions) > before, nil
}

func (f *fakeBackend) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID, limit)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.notifications {
		if n.RecipientUserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeBackend) UnreadNotificationCount(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notifications {
		if n.RecipientUserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeBackend) MarkNotificationRead(_ context.Context, notificationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications {
		if n.ID == notificationID && n.RecipientUserID == userID {
			f.notifications[i].IsRead = true
			return nil
		}
	}
	return backend.ErrNotFound
}

func (f *fakeBackend) MarkAllNotificationsRead(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications {
		if n.RecipientUserID == userID {
			f.notifications[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeBackend) SubscribeArtifact(_ context.Context, artifactID string, onChange func(model.Change)) (backend.Subscription, error) {
	return f.subscribe("artifact:"+artifactID, onChange)
}

func (f *fakeBackend) SubscribeInbox(_ context.Context, userID string, onChange func(model.Change)) (backend.Subscription, error) {
	return f.subscribe("inbox:"+userID, onChange)
}

func (f *fakeBackend) subscribe(key string, onChange func(model.Change)) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	if f.handlers == nil {
		f.handlers = make(map[string]func(model.Change))
	}
	f.handlers[key] = onChange
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.released++
		delete(f.handlers, key)
	}, nil
}

func (f *fakeBackend) fire(key string, change model.Change) {
	f.mu.Lock()
	h := f.handlers[key]
	f.mu.Unlock()
	if h != nil {
		h(change)
	}
}

func (f *fakeBackend) subscribed(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[key]
	return ok
}

func (f *fakeBackend) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakeProfiles struct {
	mu    sync.Mutex
	saved []store.UserProfile
	err   error
}

func (f *fakeProfiles) UpsertUserProfile(_ context.Context, profile store.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, profile)
	return nil
}

type fakePeople struct {
	names     map[string]string
	forgotten []string
}

func (p *fakePeople) DisplayName(handle string) string {
	if name, ok := p.names[handle]; ok {
		return name
	}
	return handle
}

func (p *fakePeople) Names() []string {
	var out []string
	for _, n := range p.names {
		out = append(out, n)
	}
	return out
}

func (p *fakePeople) Forget(handle string) { p.forgotten = append(p.forgotten, handle) }

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) NotifyOnComment(_ context.Context, artifactID string, actor model.Author, _ string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, artifactID+"@"+actor.Username)
	return true, nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestService(fb *fakeBackend, deps Deps) *Service {
	deps.Backend = fb
	return New(config.Config{JWTSecret: testSecret, SessionTTL: time.Minute}, deps)
}

func tokenFor(t *testing.T, author model.Author) string {
	t.Helper()
	token, err := auth.IssueFor([]byte(testSecret), author, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func anchoredComment(id string, author model.Author, line, column, minute int) model.Comment {
	l, c := line, column
	at := t0.Add(time.Duration(minute) * time.Minute)
	return model.Comment{
		ID:         id,
		ArtifactID: testArtifact,
		Author:     author,
		Content:    "content of " + id,
		LineNumber: &l,
		Column:     &c,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
