package app

import (
	"context"
	"net/http"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// InboxLimit caps how many notifications are listed.
const InboxLimit = 50

type Inbox struct {
	Items  []model.Notification `json:"items"`
	Unread int                  `json:"unread"`
}

func (s *Service) Notifications(ctx context.Context, viewer model.Author) (Inbox, error) {
	items, err := s.backend.ListNotifications(ctx, viewer.UserID, InboxLimit)
	if err != nil {
		return Inbox{}, err
	}
	unread, err := s.backend.UnreadNotificationCount(ctx, viewer.UserID)
	if err != nil {
		return Inbox{}, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return Inbox{Items: items, Unread: unread}, nil
}

func (s *Service) UnreadCount(ctx context.Context, viewer model.Author) (int, error) {
	return s.backend.UnreadNotificationCount(ctx, viewer.UserID)
}

// MarkRead marks one of the viewer's notifications read. Other users'
// notifications are reported as missing.
func (s *Service) MarkRead(ctx context.Context, viewer model.Author, notificationID string) error {
	return s.backend.MarkNotificationRead(ctx, notificationID, viewer.UserID)
}

func (s *Service) MarkAllRead(ctx context.Context, viewer model.Author) error {
	return s.backend.MarkAllNotificationsRead(ctx, viewer.UserID)
}

// StreamInbox sends the viewer's inbox once and again after every change to
// it, until ctx ends.
func (s *Service) StreamInbox(ctx context.Context, viewer model.Author, send func(Inbox) error) error {
	changed := make(chan struct{}, 1)
	unsubscribe, err := s.backend.SubscribeInbox(ctx, viewer.UserID, func(model.Change) {
		offerLatest(changed, struct{}{})
	})
	if err != nil {
		s.logger.Error(ctx, "subscribe inbox", "user_id", viewer.UserID, "error", err)
		return domainError(http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", "Change feed unavailable", nil)
	}
	defer unsubscribe()

	push := func() error {
		inbox, err := s.Notifications(ctx, viewer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error(ctx, "load inbox", "user_id", viewer.UserID, "error", err)
			inbox = Inbox{Items: []model.Notification{}}
		}
		return send(inbox)
	}

	if err := push(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := push(); err != nil {
				return err
			}
		}
	}
}
