// Package commentclient owns the comment and reaction lists of one artifact.
// Every local write and every change event from the backend triggers a full
// reload; nothing is patched in place.
package commentclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

var (
	ErrEmptyContent  = errors.New("comment content is empty")
	ErrInvalidAnchor = errors.New("line must be >= 1 and column >= 0")
	ErrUnknownEmoji  = errors.New("emoji is not in the reaction set")
	ErrNoAuthor      = errors.New("author is required")
	// ErrCreateFailed wraps every backend failure of Create.
	ErrCreateFailed  = errors.New("failed to post")
)

// Backend is the persistence and change-feed collaborator.
type Backend interface {
	ListComments(ctx context.Context, artifactID string) ([]model.Comment, error)
	ListReactions(ctx context.Context, artifactID string) ([]model.Reaction, error)
	InsertComment(ctx context.Context, in store.NewComment) (model.Comment, error)
	UpdateComment(ctx context.Context, commentID, userID, content string) (model.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) (model.Comment, error)
	ToggleReaction(ctx context.Context, commentID string, user model.Author, emoji string) (bool, error)
	SubscribeArtifact(ctx context.Context, artifactID string, onChange func(model.Change)) (backend.Subscription, error)
}

// Notifier is told about every comment created through the client.
type Notifier interface {
	NotifyOnComment(ctx context.Context, artifactID string, actor model.Author, content string) (bool, error)
}

// Draft is a comment about to be created.
type Draft struct {
	Content  string
	Line     *int
	Column   *int
	ParentID *string
}

type Client struct {
	artifactID string
	backend    Backend
	notifier   Notifier
	logger     logging.Logger

	loadMu sync.Mutex

	mu        sync.RWMutex
	snap      *Snapshot
	version   uint64
	observers map[int]func(*Snapshot)
	nextObs   int

	pending sync.WaitGroup
}

func New(artifactID string, b Backend, notifier Notifier, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Client{
		artifactID: artifactID,
		backend:    b,
		notifier:   notifier,
		logger:     logger,
		snap:       newSnapshot(artifactID, 0, Unloaded, nil, nil),
		observers:  make(map[int]func(*Snapshot)),
	}
}

func (c *Client) ArtifactID() string { return c.artifactID }

// Snapshot returns the latest load result.
func (c *Client) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Client) State() State {
	return c.Snapshot().State
}

// Observe registers fn to receive every new snapshot. The returned func
// removes it.
func (c *Client) Observe(fn func(*Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) publish(next *Snapshot) {
	c.mu.Lock()
	c.snap = next
	observers := make([]func(*Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}

func (c *Client) nextVersion() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	return c.version
}

// Load refetches comments and reactions. A failed comment read leaves the
// client Loaded with an empty list; the error is only logged.
func (c *Client) Load(ctx context.Context) []model.Comment {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	prev := c.Snapshot()
	c.publish(newSnapshot(c.artifactID, c.nextVersion(), Loading, prev.Comments, prev.Reactions))

	comments, err := c.backend.ListComments(ctx, c.artifactID)
	if err != nil {
		c.logger.Error(ctx, "load comments", "artifact_id", c.artifactID, "error", err)
		c.publish(newSnapshot(c.artifactID, c.nextVersion(), Loaded, nil, nil))
		return []model.Comment{}
	}

	reactions, err := c.backend.ListReactions(ctx, c.artifactID)
	if err != nil {
		c.logger.Error(ctx, "load reactions", "artifact_id", c.artifactID, "error", err)
		reactions = nil
	}

	next := newSnapshot(c.artifactID, c.nextVersion(), Loaded, comments, reactions)
	c.publish(next)
	return next.Comments
}

// Create validates and inserts a comment, reloads, and then notifies the
// artifact owner in the background. A reply takes its parent's anchor when
// the parent is in the current snapshot.
func (c *Client) Create(ctx context.Context, author model.Author, draft Draft) (model.Comment, error) {
	in, err := c.prepare(author, draft)
	if err != nil {
		return model.Comment{}, err
	}

	created, err := c.backend.InsertComment(ctx, in)
	if err != nil {
		return model.Comment{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	c.Load(ctx)
	c.notifyAsync(ctx, created)
	return created, nil
}

func (c *Client) prepare(author model.Author, draft Draft) (store.NewComment, error) {
	content := strings.TrimSpace(draft.Content)
	if content == "" {
		return store.NewComment{}, ErrEmptyContent
	}
	if author.UserID == "" || author.Username == "" {
		return store.NewComment{}, ErrNoAuthor
	}

	in := store.NewComment{
		ArtifactID: c.artifactID,
		Author:     author,
		Content:    content,
		LineNumber: draft.Line,
		Column:     draft.Column,
		ParentID:   draft.ParentID,
	}
	if draft.ParentID != nil && *draft.ParentID != "" {
		if parent, ok := c.Snapshot().Comment(*draft.ParentID); ok {
			in.LineNumber = parent.LineNumber
			in.Column = parent.Column
		}
	}
	if in.LineNumber != nil && *in.LineNumber < 1 {
		return store.NewComment{}, ErrInvalidAnchor
	}
	if in.Column != nil && *in.Column < 0 {
		return store.NewComment{}, ErrInvalidAnchor
	}
	return in, nil
}

func (c *Client) notifyAsync(ctx context.Context, created model.Comment) {
	if c.notifier == nil {
		return
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx := context.WithoutCancel(ctx)
		if _, err := c.notifier.NotifyOnComment(ctx, created.ArtifactID, created.Author, created.Content); err != nil {
			c.logger.Error(ctx, "notify on comment", "artifact_id", created.ArtifactID, "comment_id", created.ID, "error", err)
		}
	}()
}

// WaitNotifications blocks until background notifications have finished.
func (c *Client) WaitNotifications() {
	c.pending.Wait()
}

// Update replaces a comment's content. Only its author may do so.
func (c *Client) Update(ctx context.Context, viewer model.Author, commentID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	if _, err := c.backend.UpdateComment(ctx, commentID, viewer.UserID, content); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	c.Load(ctx)
	return nil
}

// Delete removes a comment. Only its author may do so.
func (c *Client) Delete(ctx context.Context, viewer model.Author, commentID string) error {
	if _, err := c.backend.DeleteComment(ctx, commentID, viewer.UserID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	c.Load(ctx)
	return nil
}

// ToggleReaction flips viewer's emoji on a comment and reports whether it is
// now present.
func (c *Client) ToggleReaction(ctx context.Context, viewer model.Author, commentID, emoji string) (bool, error) {
	if !thread.IsAllowedEmoji(emoji) {
		return false, ErrUnknownEmoji
	}
	if viewer.UserID == "" {
		return false, ErrNoAuthor
	}
	present, err := c.backend.ToggleReaction(ctx, commentID, viewer, emoji)
	if err != nil {
		return false, fmt.Errorf("toggle reaction: %w", err)
	}
	c.Load(ctx)
	return present, nil
}

// Subscribe reloads on every change event for the artifact and then hands
// the new snapshot to onChange. The returned func releases the subscription
// and must be called on teardown; extra calls do nothing.
func (c *Client) Subscribe(ctx context.Context, onChange func(*Snapshot)) (func(), error) {
	feedCtx := context.WithoutCancel(ctx)
	unsubscribe, err := c.backend.SubscribeArtifact(ctx, c.artifactID, func(change model.Change) {
		c.logger.Debug(feedCtx, "change received", "artifact_id", c.artifactID, "table", change.Table, "kind", string(change.Kind))
		c.Load(feedCtx)
		if onChange != nil {
			onChange(c.Snapshot())
		}
	})
	if err != nil {
		c.logger.Error(ctx, "subscribe", "artifact_id", c.artifactID, "error", err)
		return nil, fmt.Errorf("subscribe %s: %w", c.artifactID, err)
	}

	var once sync.Once
	return func() { once.Do(unsubscribe) }, nil
}
