// Package surface is the interactive layer over one artifact: it turns
// pointer and keyboard events into open threads, composers and new comments,
// and composes what should be drawn.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// CancelKey closes the open thread and composer.
const CancelKey = "Escape"

var (
	ErrNoComposer = errors.New("no composer is open")
	ErrPostFailed = commentclient.ErrCreateFailed
	ErrUnmounted  = errors.New("session is unmounted")
)

type ComposerKind string

const (
	ComposeReply ComposerKind = "reply"
	ComposeNew   ComposerKind = "new"
)

// Composer is the open comment editor. A reply composer targets ParentID;
// a new composer targets Anchor. Draft survives a failed post.
type Composer struct {
	Kind     ComposerKind `json:"kind"`
	Anchor   model.Anchor `json:"anchor"`
	ParentID string       `json:"parentId,omitempty"`
	Draft    string       `json:"draft"`
	Error    string       `json:"error,omitempty"`
}

type state struct {
	active   *model.Anchor
	hovered  *model.Anchor
	composer *Composer
}

// Session is one mounted surface. It keeps a change subscription open until
// Unmount.
type Session struct {
	id      string
	client  *commentclient.Client
	viewer  model.Author
	metrics geometry.Metrics
	people  People
	logger  logging.Logger

	mu          sync.Mutex
	st          state
	layout      geometry.Layout
	layoutAt    uint64
	hasLayout   bool
	unsubscribe func()
	closed      bool
}

type Options struct {
	People People
	Logger logging.Logger
	// OnChange is called with the new frame after every remote change.
	OnChange func(Frame)
}

// Open loads the artifact's comments and subscribes to its changes. A failed
// subscription is logged and the session works without live updates.
func Open(ctx context.Context, id string, client *commentclient.Client, viewer model.Author, metrics geometry.Metrics, opts Options) *Session {
	s := &Session{
		id:      id,
		client:  client,
		viewer:  viewer,
		metrics: metrics,
		people:  opts.People,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = logging.NewNoop()
	}
	if s.people == nil {
		s.people = noPeople{}
	}

	client.Load(ctx)
	unsubscribe, err := client.Subscribe(ctx, func(*commentclient.Snapshot) {
		if opts.OnChange != nil {
			opts.OnChange(s.Frame())
		}
	})
	if err != nil {
		s.logger.Warn(ctx, "surface without live updates", "session_id", id, "artifact_id", client.ArtifactID(), "error", err)
	} else {
		s.unsubscribe = unsubscribe
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) ArtifactID() string { return s.client.ArtifactID() }

func (s *Session) Viewer() model.Author { return s.viewer }

// layoutLocked recomputes marker placement only when the snapshot changed.
func (s *Session) layoutLocked(snap *commentclient.Snapshot) geometry.Layout {
	if !s.hasLayout || s.layoutAt != snap.Version {
		s.layout = geometry.Compute(snap.Comments, snap.Colors(), s.metrics)
		s.layoutAt = snap.Version
		s.hasLayout = true
	}
	return s.layout
}

// Frame composes the current view.
func (s *Session) Frame() Frame {
	snap := s.client.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return compose(snap, s.layoutLocked(snap), s.st, s.viewer, s.people)
}

// Resize changes the view metrics, e.g. after the viewport width changed.
func (s *Session) Resize(metrics geometry.Metrics) Frame {
	s.mu.Lock()
	s.metrics = metrics
	s.hasLayout = false
	s.mu.Unlock()
	return s.Frame()
}

// Click handles a click at (x, y) in line's row. A click on a marker opens
// that marker's thread with a reply composer; anywhere else opens a new
// comment composer at the clicked column.
func (s *Session) Click(line int, x, y float64) Frame {
	snap := s.client.Snapshot()
	s.mu.Lock()
	layout := s.layoutLocked(snap)
	if line < 1 {
		line = 1
	}
	if marker, ok := layout.HitTest(line, x, y); ok {
		anchor := marker.Anchor
		s.st.active = &anchor
		s.st.composer = &Composer{Kind: ComposeReply, Anchor: anchor, ParentID: marker.ThreadID()}
	} else {
		anchor := model.Anchor{Line: line, Column: geometry.ColumnAt(layout.Metrics, x)}
		s.st.active = &anchor
		s.st.composer = &Composer{Kind: ComposeNew, Anchor: anchor}
	}
	s.st.hovered = nil
	frame := compose(snap, layout, s.st, s.viewer, s.people)
	s.mu.Unlock()
	return frame
}

// Hover shows a read-only preview of the marker under the pointer, if any.
func (s *Session) Hover(line int, x, y float64) Frame {
	snap := s.client.Snapshot()
	s.mu.Lock()
	layout := s.layoutLocked(snap)
	if marker, ok := layout.HitTest(line, x, y); ok {
		anchor := marker.Anchor
		s.st.hovered = &anchor
	} else {
		s.st.hovered = nil
	}
	frame := compose(snap, layout, s.st, s.viewer, s.people)
	s.mu.Unlock()
	return frame
}

// Key closes the open thread when key is CancelKey.
func (s *Session) Key(key string) Frame {
	if key == CancelKey {
		return s.Close()
	}
	return s.Frame()
}

// Outside handles a click outside both the code view and any open thread.
func (s *Session) Outside() Frame {
	return s.Close()
}

// Close closes the active thread with its composer, and the hover preview.
func (s *Session) Close() Frame {
	s.mu.Lock()
	s.st = state{}
	s.mu.Unlock()
	return s.Frame()
}

// SetDraft stores the composer text without posting it.
func (s *Session) SetDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.composer == nil {
		return ErrNoComposer
	}
	s.st.composer.Draft = text
	return nil
}

// Submit posts content from the open composer. Empty content is rejected
// before anything is sent. When the post fails the draft is kept and the
// composer carries a failure notice.
func (s *Session) Submit(ctx context.Context, content string) (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, ErrUnmounted
	}
	if s.st.composer == nil {
		s.mu.Unlock()
		return s.Frame(), ErrNoComposer
	}
	composer := *s.st.composer
	composer.Draft = content
	composer.Error = ""
	s.st.composer = &composer
	s.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		return s.fail(composer, "comment cannot be empty"), commentclient.ErrEmptyContent
	}

	draft := commentclient.Draft{Content: content}
	if composer.Kind == ComposeReply {
		parentID := composer.ParentID
		draft.ParentID = &parentID
	}
	line, column := composer.Anchor.Line, composer.Anchor.Column
	draft.Line = &line
	draft.Column = &column

	created, err := s.client.Create(ctx, s.viewer, draft)
	if err != nil {
		s.logger.Error(ctx, "post comment", "session_id", s.id, "artifact_id", s.client.ArtifactID(), "error", err)
		if !errors.Is(err, ErrPostFailed) {
			err = fmt.Errorf("%w: %w", ErrPostFailed, err)
		}
		return s.fail(composer, ErrPostFailed.Error()), err
	}

	s.mu.Lock()
	anchor := composer.Anchor
	s.st.active = &anchor
	threadID := created.ID
	if composer.Kind == ComposeReply {
		threadID = composer.ParentID
	}
	s.st.composer = &Composer{Kind: ComposeReply, Anchor: anchor, ParentID: threadID}
	s.mu.Unlock()
	return s.Frame(), nil
}

func (s *Session) fail(composer Composer, notice string) Frame {
	s.mu.Lock()
	composer.Error = notice
	s.st.composer = &composer
	s.mu.Unlock()
	return s.Frame()
}

// Unmount releases the change subscription. Later calls do nothing.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session) Unmounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
