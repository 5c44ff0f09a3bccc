package surface

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

var (
	viewMetrics = geometry.Metrics{CharWidth: 8, GutterWidth: 40, ViewportWidth: 600, LineHeight: 20}
	carol       = model.Author{UserID: "u-carol", Username: "carol"}
)

func openSession(t *testing.T, fb *fakeBackend, opts Options) *Session {
	t.Helper()
	client := commentclient.New(artifactID, fb, nil, nil)
	s := Open(context.Background(), "s1", client, carol, viewMetrics, opts)
	t.Cleanup(s.Unmount)
	return s
}

func TestClickOnMarkerOpensReplyComposer(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{
		comment("c1", "alice", 10, 5, "", 0),
		comment("c2", "bob", 10, 5, "", 1),
	}}
	s := openSession(t, fb, Options{})

	// bob's marker sits one spacing to the right of alice's.
	x := geometry.PixelX(viewMetrics, 5, 1)
	frame := s.Click(10, x+2, geometry.MarkerY)

	require.NotNil(t, frame.Composer)
	assert.Equal(t, ComposeReply, frame.Composer.Kind)
	assert.Equal(t, "c2", frame.Composer.ParentID)
	require.NotNil(t, frame.Active)
	assert.Equal(t, model.Anchor{Line: 10, Column: 5}, frame.Active.Anchor)
	assert.Len(t, frame.Active.Threads, 2)
	assert.Nil(t, frame.Preview)
}

func TestClickElsewhereOpensNewComposerAtColumn(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{comment("c1", "alice", 10, 5, "", 0)}}
	s := openSession(t, fb, Options{})

	frame := s.Click(3, 40+12*8+3, 6)

	require.NotNil(t, frame.Composer)
	assert.Equal(t, ComposeNew, frame.Composer.Kind)
	assert.Equal(t, model.Anchor{Line: 3, Column: 12}, frame.Composer.Anchor)
	require.NotNil(t, frame.Preview)
	assert.Equal(t, "carol", frame.Preview.Author)
	assert.Equal(t, 0, frame.Preview.Offset)
	assert.Len(t, frame.Markers, 1, "the preview is not a persisted marker")
}

func TestOnlyOneThreadOpenAtATime(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{
		comment("c1", "alice", 2, 0, "", 0),
		comment("c2", "bob", 4, 0, "", 1),
	}}
	s := openSession(t, fb, Options{})

	s.Click(2, geometry.PixelX(viewMetrics, 0, 0), geometry.MarkerY)
	frame := s.Click(4, geometry.PixelX(viewMetrics, 0, 0), geometry.MarkerY)

	require.NotNil(t, frame.Active)
	assert.Equal(t, 4, frame.Active.Anchor.Line)
	assert.Equal(t, "c2", frame.Composer.ParentID)
}

func TestHoverPreview(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{comment("c1", "alice", 2, 0, "", 0)}}
	s := openSession(t, fb, Options{})

	frame := s.Hover(2, geometry.PixelX(viewMetrics, 0, 0), geometry.MarkerY)
	require.NotNil(t, frame.Hovered)
	assert.Equal(t, "c1", frame.Hovered.Threads[0].Root.ID)
	assert.Nil(t, frame.Composer)

	frame = s.Hover(2, 500, 10)
	assert.Nil(t, frame.Hovered)
}

func TestClosingTriggers(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{comment("c1", "alice", 2, 0, "", 0)}}
	s := openSession(t, fb, Options{})
	open := func() {
		frame := s.Click(2, geometry.PixelX(viewMetrics, 0, 0), geometry.MarkerY)
		require.NotNil(t, frame.Active)
	}

	open()
	frame := s.Key("Enter")
	assert.NotNil(t, frame.Active, "other keys leave the thread open")
	frame = s.Key(CancelKey)
	assert.Nil(t, frame.Active)
	assert.Nil(t, frame.Composer)

	open()
	frame = s.Outside()
	assert.Nil(t, frame.Active)

	open()
	frame = s.Close()
	assert.Nil(t, frame.Active)
	assert.Nil(t, frame.Hovered)
}

func TestSubmitEmptyNeverReachesBackend(t *testing.T) {
	fb := &fakeBackend{}
	s := openSession(t, fb, Options{})
	s.Click(1, 60, 5)

	frame, err := s.Submit(context.Background(), "   ")

	require.ErrorIs(t, err, commentclient.ErrEmptyContent)
	assert.Equal(t, 0, fb.insertCount())
	require.NotNil(t, frame.Composer)
	assert.NotEmpty(t, frame.Composer.Error)
}

func TestSubmitWithoutComposer(t *testing.T) {
	s := openSession(t, &fakeBackend{}, Options{})
	_, err := s.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoComposer)
	assert.ErrorIs(t, s.SetDraft("x"), ErrNoComposer)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	fb := &fakeBackend{insertErr: errors.New("connection reset")}
	s := openSession(t, fb, Options{})
	s.Click(1, 60, 5)

	frame, err := s.Submit(context.Background(), "keep me")

	require.ErrorIs(t, err, ErrPostFailed)
	require.NotNil(t, frame.Composer)
	assert.Equal(t, "keep me", frame.Composer.Draft)
	assert.Equal(t, "failed to post", frame.Composer.Error)
	assert.Empty(t, frame.Markers)
}

func TestSubmitNewCommentBecomesThread(t *testing.T) {
	fb := &fakeBackend{}
	s := openSession(t, fb, Options{})
	s.Click(7, 40+3*8, 5)

	frame, err := s.Submit(context.Background(), "off by one here")

	require.NoError(t, err)
	require.Len(t, frame.Markers, 1)
	assert.Equal(t, model.Anchor{Line: 7, Column: 3}, frame.Markers[0].Anchor)
	require.NotNil(t, frame.Composer)
	assert.Equal(t, ComposeReply, frame.Composer.Kind)
	assert.Equal(t, "new1", frame.Composer.ParentID)
	assert.Empty(t, frame.Composer.Draft)
	assert.Nil(t, frame.Preview)
}

func TestSubmitReplyTakesParentAnchor(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{comment("c1", "alice", 10, 5, "", 0)}}
	s := openSession(t, fb, Options{})
	s.Click(10, geometry.PixelX(viewMetrics, 5, 0), geometry.MarkerY)

	frame, err := s.Submit(context.Background(), "agreed")

	require.NoError(t, err)
	assert.Len(t, frame.Markers, 1, "replies never get their own marker")
	require.NotNil(t, frame.Active)
	require.Len(t, frame.Active.Threads, 1)
	replies := frame.Active.Threads[0].Replies
	require.Len(t, replies, 1)
	assert.Equal(t, "agreed", replies[0].Content)
	assert.True(t, replies[0].Mine)
	assert.Equal(t, 10, *replies[0].LineNumber)
}

func TestRemoteChangeRefreshesFrame(t *testing.T) {
	fb := &fakeBackend{}
	var (
		mu     sync.Mutex
		frames []Frame
	)
	s := openSession(t, fb, Options{OnChange: func(f Frame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	}})
	assert.Empty(t, s.Frame().Markers)

	fb.mu.Lock()
	fb.comments = append(fb.comments, comment("c9", "bob", 3, 0, "", 0))
	fb.mu.Unlock()
	fb.fire(model.Change{Table: model.TableComments, Kind: model.ChangeInsert})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Markers, 1)
	assert.Len(t, s.Frame().Markers, 1)
}

func TestUnmountReleasesSubscription(t *testing.T) {
	fb := &fakeBackend{}
	s := openSession(t, fb, Options{})

	s.Unmount()
	s.Unmount()

	assert.True(t, s.Unmounted())
	assert.Equal(t, 1, fb.released)
	s.Click(1, 60, 5)
	_, err := s.Submit(context.Background(), "late")
	assert.ErrorIs(t, err, ErrUnmounted)
}

func TestResizeMovesMarkersToOverflow(t *testing.T) {
	fb := &fakeBackend{comments: []model.Comment{comment("c1", "alice", 1, 60, "", 0)}}
	s := openSession(t, fb, Options{})
	require.Len(t, s.Frame().Markers, 1)

	narrow := viewMetrics
	narrow.ViewportWidth = 300
	frame := s.Resize(narrow)

	assert.Empty(t, frame.Markers)
	assert.Len(t, frame.Overflow, 1)
}
