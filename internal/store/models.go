package store

import (
	"errors"
	"time"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

var ErrNotFound = errors.New("not found")

// NewComment is the insert shape of a comment. Content is stored as given;
// trimming and emptiness checks happen before it gets here.
type NewComment struct {
	ArtifactID string
	Author     model.Author
	Content    string
	LineNumber *int
	Column     *int
	ParentID   *string
}

// UserProfile links an authenticated user id to its github handle. It is the
// recipient mapping used by notifications.
type UserProfile struct {
	UserID         string
	GithubUsername string
	AvatarURL      string
	UpdatedAt      time.Time
}
