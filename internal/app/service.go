package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	gocache "github.com/patrickmn/go-cache"

	"github.com/TWLS151/Soootudy-sub000/internal/artifact"
	"github.com/TWLS151/Soootudy-sub000/internal/auth"
	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/config"
	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
	"github.com/TWLS151/Soootudy-sub000/internal/surface"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

// commentBackend is everything the service needs from the persistence and
// change-feed backend.
type commentBackend interface {
	commentclient.Backend
	GetComment(ctx context.Context, commentID string) (model.Comment, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	UnreadNotificationCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	SubscribeInbox(ctx context.Context, userID string, onChange func(model.Change)) (backend.Subscription, error)
}

type profileStore interface {
	UpsertUserProfile(ctx context.Context, profile store.UserProfile) error
}

// people resolves display names and drops stale recipient mappings.
type people interface {
	surface.People
	Forget(handle string)
}

// Check is one readiness check.
type Check func(ctx context.Context) error

// Deps are the collaborators of a Service. Notifier, People, Source and
// Profiles may be nil.
type Deps struct {
	Backend  commentBackend
	Profiles profileStore
	Notifier commentclient.Notifier
	People   people
	Source   artifact.Source
	Checks   map[string]Check
	Logger   logging.Logger
}

type Service struct {
	cfg      config.Config
	backend  commentBackend
	profiles profileStore
	notifier commentclient.Notifier
	people   people
	source   artifact.Source
	checks   map[string]Check
	logger   logging.Logger
	validate *validator.Validate

	// seen remembers which handle each user id was last stored with.
	seen     *gocache.Cache
	sessions *gocache.Cache
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNoop()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &Service{
		cfg:      cfg,
		backend:  deps.Backend,
		profiles: deps.Profiles,
		notifier: deps.Notifier,
		people:   deps.People,
		source:   deps.Source,
		checks:   deps.Checks,
		logger:   logger,
		validate: newValidator(),
		seen:     gocache.New(time.Hour, 10*time.Minute),
		sessions: gocache.New(ttl, ttl/2),
	}
	s.sessions.OnEvicted(func(id string, item interface{}) {
		if session, ok := item.(*surface.Session); ok {
			session.Unmount()
			s.logger.Debug(context.Background(), "surface session released", "session_id", id)
		}
	})
	return s
}

// Viewer verifies a bearer token and records the viewer's profile so that
// notifications for their handle can find them.
func (s *Service) Viewer(ctx context.Context, token string) (model.Author, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return model.Author{}, err
	}
	viewer := claims.Author()
	s.rememberProfile(ctx, viewer)
	return viewer, nil
}

func (s *Service) rememberProfile(ctx context.Context, viewer model.Author) {
	if s.profiles == nil {
		return
	}
	previous, found := s.seen.Get(viewer.UserID)
	if found && previous.(string) == viewer.Username {
		return
	}
	err := s.profiles.UpsertUserProfile(ctx, store.UserProfile{
		UserID:         viewer.UserID,
		GithubUsername: viewer.Username,
		AvatarURL:      viewer.AvatarURL,
	})
	if err != nil {
		s.logger.Error(ctx, "store user profile", "user_id", viewer.UserID, "error", err)
		return
	}
	s.seen.SetDefault(viewer.UserID, viewer.Username)
	if s.people != nil {
		s.people.Forget(viewer.Username)
		if found {
			s.people.Forget(previous.(string))
		}
	}
}

func (s *Service) client(artifactID string) *commentclient.Client {
	return commentclient.New(artifactID, s.backend, s.notifier, s.logger)
}

func (s *Service) surfacePeople() surface.People {
	if s.people == nil {
		return nil
	}
	return s.people
}

func (s *Service) checkArtifact(artifactID string) error {
	return s.validate.Var(artifactID, "required,artifact")
}

// Comments loads the artifact's comments decorated for viewer. A failed read
// yields an empty list.
func (s *Service) Comments(ctx context.Context, viewer model.Author, artifactID string) (surface.SnapshotView, error) {
	if err := s.checkArtifact(artifactID); err != nil {
		return surface.SnapshotView{}, err
	}
	client := s.client(artifactID)
	client.Load(ctx)
	return surface.ViewSnapshot(client.Snapshot(), viewer, s.surfacePeople()), nil
}

// requireOn fails with ErrNotFound unless commentID is stored on artifactID,
// so a mutation never lands on a comment of another artifact.
func (s *Service) requireOn(ctx context.Context, artifactID, commentID string) error {
	stored, err := s.backend.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("get comment %s: %w", commentID, err)
	}
	if stored.ArtifactID != artifactID {
		return fmt.Errorf("comment %s on %s: %w", commentID, artifactID, backend.ErrNotFound)
	}
	return nil
}

func (s *Service) CreateComment(ctx context.Context, viewer model.Author, in CreateCommentInput) (model.Comment, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.Comment{}, err
	}
	if in.Column != nil && in.Line == nil {
		return model.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "column requires line", nil)
	}

	client := s.client(in.ArtifactID)
	if in.ParentID != nil {
		// The parent's anchor is copied from the snapshot when it is there.
		// A missing parent is left to the insert to accept or refuse.
		client.Load(ctx)
	}

	return client.Create(ctx, viewer, commentclient.Draft{
		Content:  in.Content,
		Line:     in.Line,
		Column:   in.Column,
		ParentID: in.ParentID,
	})
}

// UpdateComment replaces the content of the viewer's own comment and returns
// it as stored.
func (s *Service) UpdateComment(ctx context.Context, viewer model.Author, commentID string, in UpdateCommentInput) (model.Comment, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.Comment{}, err
	}
	if err := s.requireOn(ctx, in.ArtifactID, commentID); err != nil {
		return model.Comment{}, err
	}
	client := s.client(in.ArtifactID)
	if err := client.Update(ctx, viewer, commentID, in.Content); err != nil {
		return model.Comment{}, err
	}
	updated, ok := client.Snapshot().Comment(commentID)
	if !ok {
		return model.Comment{}, fmt.Errorf("reload comment %s: %w", commentID, backend.ErrNotFound)
	}
	return updated, nil
}

func (s *Service) DeleteComment(ctx context.Context, viewer model.Author, artifactID, commentID string) error {
	if err := s.checkArtifact(artifactID); err != nil {
		return err
	}
	if err := s.requireOn(ctx, artifactID, commentID); err != nil {
		return err
	}
	return s.client(artifactID).Delete(ctx, viewer, commentID)
}

// ReactionResult is the state of one comment's reactions after a toggle.
type ReactionResult struct {
	Present   bool                   `json:"present"`
	Reactions []thread.ReactionGroup `json:"reactions"`
}

func (s *Service) ToggleReaction(ctx context.Context, viewer model.Author, commentID string, in ReactionInput) (ReactionResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return ReactionResult{}, err
	}
	if err := s.requireOn(ctx, in.ArtifactID, commentID); err != nil {
		return ReactionResult{}, err
	}
	client := s.client(in.ArtifactID)
	present, err := client.ToggleReaction(ctx, viewer, commentID, in.Emoji)
	if err != nil {
		return ReactionResult{}, err
	}
	return ReactionResult{
		Present:   present,
		Reactions: client.Snapshot().ReactionsFor(commentID, viewer.UserID),
	}, nil
}

// Layout places the artifact's markers for the given view metrics.
func (s *Service) Layout(ctx context.Context, in LayoutInput) (geometry.Layout, error) {
	if err := s.validate.Struct(in); err != nil {
		return geometry.Layout{}, err
	}
	client := s.client(in.ArtifactID)
	client.Load(ctx)
	snap := client.Snapshot()
	return geometry.Compute(snap.Comments, snap.Colors(), in.Metrics), nil
}

// Export renders the artifact's source with its anonymised comments.
func (s *Service) Export(ctx context.Context, artifactID string) (string, error) {
	if err := s.checkArtifact(artifactID); err != nil {
		return "", err
	}
	if s.source == nil {
		return "", domainError(http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "No artifact source is configured", nil)
	}
	text, err := s.source.Read(ctx, artifactID)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", artifactID, err)
	}
	client := s.client(artifactID)
	comments := client.Load(ctx)
	return surface.CopyWithComments(text.Content, comments), nil
}

// Stream sends the decorated snapshot once and then again after every change
// to the artifact, until ctx ends.
func (s *Service) Stream(ctx context.Context, viewer model.Author, artifactID string, send func(surface.SnapshotView) error) error {
	if err := s.checkArtifact(artifactID); err != nil {
		return err
	}
	client := s.client(artifactID)
	snaps := make(chan *commentclient.Snapshot, 1)
	unsubscribe, err := client.Subscribe(ctx, func(snap *commentclient.Snapshot) {
		offerLatest(snaps, snap)
	})
	if err != nil {
		return domainError(http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", "Change feed unavailable", nil)
	}
	defer unsubscribe()

	client.Load(ctx)
	if err := send(surface.ViewSnapshot(client.Snapshot(), viewer, s.surfacePeople())); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-snaps:
			if err := send(surface.ViewSnapshot(snap, viewer, s.surfacePeople())); err != nil {
				return err
			}
		}
	}
}

// offerLatest replaces whatever is waiting in ch with v.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Ready runs every readiness check.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ok := true
	results := make(map[string]any, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			ok = false
			results[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		results[name] = map[string]any{"status": "ok"}
	}
	return ok, results
}

// Shutdown releases every open surface session.
func (s *Service) Shutdown() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
}
