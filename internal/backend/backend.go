// Package backend is the persistence and change-feed backend the comment
// client talks to. Every successful write is followed by a change event on
// the affected artifact's (or recipient's) channel.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/realtime"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
)

var (
	ErrNotFound  = store.ErrNotFound
	ErrForbidden = errors.New("only the author may change this comment")
)

type dataStore interface {
	ListComments(ctx context.Context, artifactID string) ([]model.Comment, error)
	GetComment(ctx context.Context, commentID string) (model.Comment, error)
	InsertComment(ctx context.Context, in store.NewComment) (model.Comment, error)
	UpdateComment(ctx context.Context, commentID, userID, content string) (bool, error)
	DeleteComment(ctx context.Context, commentID, userID string) (bool, error)
	ListReactions(ctx context.Context, artifactID string) ([]model.Reaction, error)
	ToggleReaction(ctx context.Context, commentID string, user model.Author, emoji string) (bool, error)
	InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	UnreadNotificationCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
}

type Backend struct {
	store  dataStore
	feed   *realtime.Feed
	logger logging.Logger
	now    func() time.Time
}

func New(s dataStore, feed *realtime.Feed, logger logging.Logger) *Backend {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Backend{store: s, feed: feed, logger: logger, now: time.Now}
}

func (b *Backend) ListComments(ctx context.Context, artifactID string) ([]model.Comment, error) {
	return b.store.ListComments(ctx, artifactID)
}

func (b *Backend) ListReactions(ctx context.Context, artifactID string) ([]model.Reaction, error) {
	return b.store.ListReactions(ctx, artifactID)
}

func (b *Backend) GetComment(ctx context.Context, commentID string) (model.Comment, error) {
	return b.store.GetComment(ctx, commentID)
}

func (b *Backend) InsertComment(ctx context.Context, in store.NewComment) (model.Comment, error) {
	item, err := b.store.InsertComment(ctx, in)
	if err != nil {
		return model.Comment{}, err
	}
	b.publishArtifact(ctx, item.ArtifactID, model.TableComments, model.ChangeInsert, item.ID)
	return item, nil
}

// UpdateComment replaces the content of a comment owned by userID and
// returns the comment as it was before the update.
func (b *Backend) UpdateComment(ctx context.Context, commentID, userID, content string) (model.Comment, error) {
	existing, err := b.authorOnly(ctx, commentID, userID)
	if err != nil {
		return model.Comment{}, err
	}
	ok, err := b.store.UpdateComment(ctx, commentID, userID, content)
	if err != nil {
		return model.Comment{}, err
	}
	if !ok {
		return model.Comment{}, ErrNotFound
	}
	b.publishArtifact(ctx, existing.ArtifactID, model.TableComments, model.ChangeUpdate, commentID)
	return existing, nil
}

func (b *Backend) DeleteComment(ctx context.Context, commentID, userID string) (model.Comment, error) {
	existing, err := b.authorOnly(ctx, commentID, userID)
	if err != nil {
		return model.Comment{}, err
	}
	ok, err := b.store.DeleteComment(ctx, commentID, userID)
	if err != nil {
		return model.Comment{}, err
	}
	if !ok {
		return model.Comment{}, ErrNotFound
	}
	b.publishArtifact(ctx, existing.ArtifactID, model.TableComments, model.ChangeDelete, commentID)
	return existing, nil
}

func (b *Backend) authorOnly(ctx context.Context, commentID, userID string) (model.Comment, error) {
	existing, err := b.store.GetComment(ctx, commentID)
	if err != nil {
		return model.Comment{}, err
	}
	if existing.Author.UserID != userID {
		return model.Comment{}, ErrForbidden
	}
	return existing, nil
}

// ToggleReaction flips user's emoji on a comment and reports whether the
// reaction is now present.
func (b *Backend) ToggleReaction(ctx context.Context, commentID string, user model.Author, emoji string) (bool, error) {
	target, err := b.store.GetComment(ctx, commentID)
	if err != nil {
		return false, err
	}
	present, err := b.store.ToggleReaction(ctx, commentID, user, emoji)
	if err != nil {
		return false, err
	}
	kind := model.ChangeDelete
	if present {
		kind = model.ChangeInsert
	}
	b.publishArtifact(ctx, target.ArtifactID, model.TableReactions, kind, commentID)
	return present, nil
}

func (b *Backend) InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	item, err := b.store.InsertNotification(ctx, n)
	if err != nil {
		return model.Notification{}, err
	}
	if b.feed != nil {
		b.publish(ctx, b.feed.InboxChannel(item.RecipientUserID), model.Change{
			Table:    model.TableNotifications,
			Kind:     model.ChangeInsert,
			Key:      item.RecipientUserID,
			RecordID: item.ID,
			At:       b.now().UTC(),
		})
	}
	return item, nil
}

func (b *Backend) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	return b.store.ListNotifications(ctx, userID, limit)
}

func (b *Backend) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	return b.store.UnreadNotificationCount(ctx, userID)
}

func (b *Backend) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	ok, err := b.store.MarkNotificationRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	b.publishInboxUpdate(ctx, userID, notificationID)
	return nil
}

func (b *Backend) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	n, err := b.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return err
	}
	if n > 0 {
		b.publishInboxUpdate(ctx, userID, "")
	}
	return nil
}

// Subscription is the handle returned by the Subscribe methods. Calling it
// releases the subscription; later calls do nothing.
type Subscription func()

// SubscribeArtifact calls onChange for every comment or reaction change on
// artifactID until the returned handle is called.
func (b *Backend) SubscribeArtifact(ctx context.Context, artifactID string, onChange func(model.Change)) (Subscription, error) {
	if b.feed == nil {
		return nil, fmt.Errorf("subscribe %s: change feed not configured", artifactID)
	}
	return b.subscribe(ctx, b.feed.ArtifactChannel(artifactID), onChange)
}

// SubscribeInbox calls onChange for every notification change of userID.
func (b *Backend) SubscribeInbox(ctx context.Context, userID string, onChange func(model.Change)) (Subscription, error) {
	if b.feed == nil {
		return nil, fmt.Errorf("subscribe inbox %s: change feed not configured", userID)
	}
	return b.subscribe(ctx, b.feed.InboxChannel(userID), onChange)
}

func (b *Backend) subscribe(ctx context.Context, channel string, onChange func(model.Change)) (Subscription, error) {
	sub, err := b.feed.Subscribe(ctx, channel, onChange)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn(ctx, "close subscription", "channel", channel, "error", err)
		}
	}, nil
}

func (b *Backend) publishArtifact(ctx context.Context, artifactID, table string, kind model.ChangeKind, recordID string) {
	if b.feed == nil {
		return
	}
	b.publish(ctx, b.feed.ArtifactChannel(artifactID), model.Change{
		Table:    table,
		Kind:     kind,
		Key:      artifactID,
		RecordID: recordID,
		At:       b.now().UTC(),
	})
}

func (b *Backend) publishInboxUpdate(ctx context.Context, userID, recordID string) {
	if b.feed == nil {
		return
	}
	b.publish(ctx, b.feed.InboxChannel(userID), model.Change{
		Table:    model.TableNotifications,
		Kind:     model.ChangeUpdate,
		Key:      userID,
		RecordID: recordID,
		At:       b.now().UTC(),
	})
}

// publish failures are logged only; the write has already happened and other
// clients catch up on their next refetch.
func (b *Backend) publish(ctx context.Context, channel string, change model.Change) {
	if err := b.feed.Publish(ctx, channel, change); err != nil {
		b.logger.Error(ctx, "publish change", "channel", channel, "record_id", change.RecordID, "error", err)
	}
}
