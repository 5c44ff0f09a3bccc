// Package notify tells an artifact's owner when someone else comments on it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TWLS151/Soootudy-sub000/internal/identity"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// PreviewLength is the number of characters of a comment kept in a
// notification preview.
const PreviewLength = 80

// Directory resolves artifact owners and notification recipients.
// identity.ErrUnknown means there is nobody to notify.
type Directory interface {
	OwnerHandle(ctx context.Context, ownerID string) (string, error)
	RecipientID(ctx context.Context, handle string) (string, error)
}

type notificationStore interface {
	InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error)
}

type Dispatcher struct {
	directory Directory
	store     notificationStore
	logger    logging.Logger
}

func NewDispatcher(directory Directory, store notificationStore, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Dispatcher{directory: directory, store: store, logger: logger}
}

// NotifyOnComment records one notification for the owner of artifactID
// unless the actor is the owner. Malformed ids, unknown owners and owners
// without a recipient mapping are skipped without error. The result reports
// whether a notification was written.
func (d *Dispatcher) NotifyOnComment(ctx context.Context, artifactID string, actor model.Author, content string) (bool, error) {
	locator, ok := model.ParseArtifactID(artifactID)
	if !ok {
		d.logger.Debug(ctx, "skip notification: malformed artifact id", "artifact_id", artifactID)
		return false, nil
	}

	owner, err := d.directory.OwnerHandle(ctx, locator.Owner)
	if err != nil {
		return false, d.skip(ctx, "owner", artifactID, err)
	}
	if strings.EqualFold(owner, actor.Username) {
		return false, nil
	}

	recipient, err := d.directory.RecipientID(ctx, owner)
	if err != nil {
		return false, d.skip(ctx, "recipient", artifactID, err)
	}

	if _, err := d.store.InsertNotification(ctx, model.Notification{
		RecipientUserID: recipient,
		Actor:           actor,
		Artifact:        locator,
		Preview:         Preview(content),
	}); err != nil {
		return false, fmt.Errorf("notify owner of %s: %w", artifactID, err)
	}
	return true, nil
}

func (d *Dispatcher) skip(ctx context.Context, what, artifactID string, err error) error {
	if errors.Is(err, identity.ErrUnknown) {
		d.logger.Debug(ctx, "skip notification: no "+what, "artifact_id", artifactID)
		return nil
	}
	return fmt.Errorf("resolve %s of %s: %w", what, artifactID, err)
}

// Preview keeps the first PreviewLength characters of content and appends
// "..." when anything was cut.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLength]) + "..."
}
