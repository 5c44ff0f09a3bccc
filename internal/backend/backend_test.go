package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/realtime"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
)

type fakeStore struct {
	listCommentsFn   func(ctx context.Context, artifactID string) ([]model.Comment, error)
	getCommentFn     func(ctx context.Context, commentID string) (model.Comment, error)
	insertCommentFn  func(ctx context.Context, in store.NewComment) (model.Comment, error)
	updateCommentFn  func(ctx context.Context, commentID, userID, content string) (bool, error)
	deleteCommentFn  func(ctx context.Context, commentID, userID string) (bool, error)
	toggleReactionFn func(ctx context.Context, commentID string, user model.Author, emoji string) (bool, error)
	insertNotifFn    func(ctx context.Context, n model.Notification) (model.Notification, error)
	markReadFn       func(ctx context.Context, notificationID, userID string) (bool, error)
	markAllReadFn    func(ctx context.Context, userID string) (int64, error)
}

func (f *fakeStore) ListComments(ctx context.Context, artifactID string) ([]model.Comment, error) {
	if f.listCommentsFn != nil {
		return f.listCommentsFn(ctx, artifactID)
	}
	return []model.Comment{}, nil
}

func (f *fakeStore) GetComment(ctx context.Context, commentID string) (model.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, commentID)
	}
	return model.Comment{}, store.ErrNotFound
}

func (f *fakeStore) InsertComment(ctx context.Context, in store.NewComment) (model.Comment, error) {
	if f.insertCommentFn != nil {
		return f.insertCommentFn(ctx, in)
	}
	return model.Comment{ID: "c1", ArtifactID: in.ArtifactID, Author: in.Author, Content: in.Content}, nil
}

func (f *fakeStore) UpdateComment(ctx context.Context, commentID, userID, content string) (bool, error) {
	if f.updateCommentFn != nil {
		return f.updateCommentFn(ctx, commentID, userID, content)
	}
	return true, nil
}

func (f *fakeStore) DeleteComment(ctx context.Context, commentID, userID string) (bool, error) {
	if f.deleteCommentFn != nil {
		return f.deleteCommentFn(ctx, commentID, userID)
	}
	return true, nil
}

func (f *fakeStore) ListReactions(context.Context, string) ([]model.Reaction, error) {
	return []model.Reaction{}, nil
}

func (f *fakeStore) ToggleReaction(ctx context.Context, commentID string, user model.Author, emoji string) (bool, error) {
	if f.toggleReactionFn != nil {
		return f.toggleReactionFn(ctx, commentID, user, emoji)
	}
	return true, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if f.insertNotifFn != nil {
		return f.insertNotifFn(ctx, n)
	}
	n.ID = "n1"
	return n, nil
}

func (f *fakeStore) ListNotifications(context.Context, string, int) ([]model.Notification, error) {
	return []model.Notification{}, nil
}

func (f *fakeStore) UnreadNotificationCount(context.Context, string) (int, error) {
	return 0, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) (bool, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, notificationID, userID)
	}
	return true, nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func newTestBackend(t *testing.T, s *fakeStore) (*Backend, *realtime.Feed) {
	t.Helper()
	mr := miniredis.RunT(t)
	feed, err := realtime.NewFeed("redis://"+mr.Addr(), logging.NewNoop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = feed.Close() })
	return New(s, feed, logging.NewNoop()), feed
}

func collect(t *testing.T, b *Backend, artifactID string) <-chan model.Change {
	t.Helper()
	changes := make(chan model.Change, 8)
	unsubscribe, err := b.SubscribeArtifact(context.Background(), artifactID, func(c model.Change) { changes <- c })
	require.NoError(t, err)
	t.Cleanup(unsubscribe)
	return changes
}

func next(t *testing.T, changes <-chan model.Change) model.Change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
		return model.Change{}
	}
}

const artifact = "alice/26-02-w1/two-sum"

func TestInsertCommentPublishesOnArtifactChannel(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{})
	changes := collect(t, b, artifact)

	_, err := b.InsertComment(context.Background(), store.NewComment{ArtifactID: artifact, Content: "hi"})
	require.NoError(t, err)

	got := next(t, changes)
	assert.Equal(t, model.TableComments, got.Table)
	assert.Equal(t, model.ChangeInsert, got.Kind)
	assert.Equal(t, artifact, got.Key)
	assert.Equal(t, "c1", got.RecordID)
}

func TestInsertCommentFailureDoesNotPublish(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{
		insertCommentFn: func(context.Context, store.NewComment) (model.Comment, error) {
			return model.Comment{}, errors.New("constraint")
		},
	})
	changes := collect(t, b, artifact)

	_, err := b.InsertComment(context.Background(), store.NewComment{ArtifactID: artifact})
	require.Error(t, err)

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUpdateCommentAuthorOnly(t *testing.T) {
	updated := false
	b, _ := newTestBackend(t, &fakeStore{
		getCommentFn: func(context.Context, string) (model.Comment, error) {
			return model.Comment{ID: "c1", ArtifactID: artifact, Author: model.Author{UserID: "u1"}}, nil
		},
		updateCommentFn: func(context.Context, string, string, string) (bool, error) {
			updated = true
			return true, nil
		},
	})

	_, err := b.UpdateComment(context.Background(), "c1", "u2", "edited")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, updated)

	changes := collect(t, b, artifact)
	_, err = b.UpdateComment(context.Background(), "c1", "u1", "edited")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, model.ChangeUpdate, next(t, changes).Kind)
}

func TestDeleteCommentMissing(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{})
	_, err := b.DeleteComment(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCommentRaceReportsNotFound(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{
		getCommentFn: func(context.Context, string) (model.Comment, error) {
			return model.Comment{ID: "c1", ArtifactID: artifact, Author: model.Author{UserID: "u1"}}, nil
		},
		deleteCommentFn: func(context.Context, string, string) (bool, error) { return false, nil },
	})
	_, err := b.DeleteComment(context.Background(), "c1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleReactionPublishesReactionChange(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{
		getCommentFn: func(context.Context, string) (model.Comment, error) {
			return model.Comment{ID: "c1", ArtifactID: artifact}, nil
		},
		toggleReactionFn: func(context.Context, string, model.Author, string) (bool, error) { return false, nil },
	})
	changes := collect(t, b, artifact)

	present, err := b.ToggleReaction(context.Background(), "c1", model.Author{UserID: "u1"}, "👍")
	require.NoError(t, err)
	assert.False(t, present)

	got := next(t, changes)
	assert.Equal(t, model.TableReactions, got.Table)
	assert.Equal(t, model.ChangeDelete, got.Kind)
}

func TestInsertNotificationPublishesOnInbox(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{})
	changes := make(chan model.Change, 1)
	unsubscribe, err := b.SubscribeInbox(context.Background(), "owner-id", func(c model.Change) { changes <- c })
	require.NoError(t, err)
	defer unsubscribe()

	_, err = b.InsertNotification(context.Background(), model.Notification{RecipientUserID: "owner-id"})
	require.NoError(t, err)

	got := next(t, changes)
	assert.Equal(t, model.TableNotifications, got.Table)
	assert.Equal(t, "n1", got.RecordID)
}

func TestMarkNotificationReadOfSomeoneElse(t *testing.T) {
	b, _ := newTestBackend(t, &fakeStore{
		markReadFn: func(context.Context, string, string) (bool, error) { return false, nil },
	})
	assert.ErrorIs(t, b.MarkNotificationRead(context.Background(), "n1", "u2"), ErrNotFound)
}

func TestWritesSucceedWhenPublishFails(t *testing.T) {
	b, feed := newTestBackend(t, &fakeStore{})
	require.NoError(t, feed.Close())

	_, err := b.InsertComment(context.Background(), store.NewComment{ArtifactID: artifact, Content: "hi"})
	assert.NoError(t, err)
}

func TestSubscribeWithoutFeed(t *testing.T) {
	b := New(&fakeStore{}, nil, nil)
	_, err := b.SubscribeArtifact(context.Background(), artifact, func(model.Change) {})
	assert.Error(t, err)

	_, err = b.InsertComment(context.Background(), store.NewComment{ArtifactID: artifact})
	assert.NoError(t, err)
}
