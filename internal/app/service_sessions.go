package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/surface"
)

// SessionFrame is a surface session's id with its current frame.
type SessionFrame struct {
	SessionID string        `json:"sessionId"`
	Frame     surface.Frame `json:"frame"`
}

// OpenSession mounts an annotation surface for viewer. It stays subscribed
// to the artifact's changes until it is closed or left idle for the session
// TTL.
func (s *Service) OpenSession(ctx context.Context, viewer model.Author, in OpenSessionInput) (SessionFrame, error) {
	if err := s.validate.Struct(in); err != nil {
		return SessionFrame{}, err
	}
	id := uuid.NewString()
	session := surface.Open(context.WithoutCancel(ctx), id, s.client(in.ArtifactID), viewer, in.Metrics, surface.Options{
		People: s.surfacePeople(),
		Logger: s.logger,
	})
	s.sessions.SetDefault(id, session)
	s.logger.Info(ctx, "surface session opened", "session_id", id, "artifact_id", in.ArtifactID, "user_id", viewer.UserID)
	return SessionFrame{SessionID: id, Frame: session.Frame()}, nil
}

// session returns viewer's session and extends its lifetime. Sessions of
// other viewers are reported as missing.
func (s *Service) session(viewer model.Author, id string) (*surface.Session, error) {
	item, ok := s.sessions.Get(id)
	if !ok {
		return nil, errSessionNotFound
	}
	session := item.(*surface.Session)
	if session.Viewer().UserID != viewer.UserID {
		return nil, errSessionNotFound
	}
	s.sessions.SetDefault(id, session)
	return session, nil
}

func (s *Service) SessionFrame(_ context.Context, viewer model.Author, id string) (surface.Frame, error) {
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Frame(), nil
}

func (s *Service) SessionClick(_ context.Context, viewer model.Author, id string, in PointerInput) (surface.Frame, error) {
	if err := s.validate.Struct(in); err != nil {
		return surface.Frame{}, err
	}
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Click(in.Line, in.X, in.Y), nil
}

func (s *Service) SessionHover(_ context.Context, viewer model.Author, id string, in PointerInput) (surface.Frame, error) {
	if err := s.validate.Struct(in); err != nil {
		return surface.Frame{}, err
	}
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Hover(in.Line, in.X, in.Y), nil
}

func (s *Service) SessionKey(_ context.Context, viewer model.Author, id string, in KeyInput) (surface.Frame, error) {
	if err := s.validate.Struct(in); err != nil {
		return surface.Frame{}, err
	}
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Key(in.Key), nil
}

func (s *Service) SessionOutside(_ context.Context, viewer model.Author, id string) (surface.Frame, error) {
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Outside(), nil
}

func (s *Service) SessionClose(_ context.Context, viewer model.Author, id string) (surface.Frame, error) {
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Close(), nil
}

func (s *Service) SessionResize(_ context.Context, viewer model.Author, id string, in ResizeInput) (surface.Frame, error) {
	if err := s.validate.Struct(in); err != nil {
		return surface.Frame{}, err
	}
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	return session.Resize(in.Metrics), nil
}

// SessionSubmit posts the open composer. Failures carry the resulting frame,
// with the draft kept, in the error details.
func (s *Service) SessionSubmit(ctx context.Context, viewer model.Author, id string, in SubmitInput) (surface.Frame, error) {
	session, err := s.session(viewer, id)
	if err != nil {
		return surface.Frame{}, err
	}
	frame, err := session.Submit(ctx, in.Content)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, commentclient.ErrEmptyContent):
		return frame, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "comment cannot be empty", frame)
	case errors.Is(err, surface.ErrPostFailed):
		return frame, domainError(http.StatusBadGateway, "POST_FAILED", "failed to post", frame)
	}
	return frame, err
}

// CloseSession unmounts the session and releases its subscription.
func (s *Service) CloseSession(_ context.Context, viewer model.Author, id string) error {
	if _, err := s.session(viewer, id); err != nil {
		return err
	}
	s.sessions.Delete(id)
	return nil
}
