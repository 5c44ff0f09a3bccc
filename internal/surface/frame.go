package surface

import (
	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

// CommentView is a comment decorated for display.
type CommentView struct {
	model.Comment
	DisplayName string                 `json:"displayName"`
	Avatar      string                 `json:"avatar"`
	Color       thread.Color           `json:"color"`
	Edited      bool                   `json:"edited"`
	Mine        bool                   `json:"mine"`
	Segments    []Segment              `json:"segments"`
	HTML        string                 `json:"html"`
	Reactions   []thread.ReactionGroup `json:"reactions"`
}

type ThreadView struct {
	Root    CommentView   `json:"root"`
	Replies []CommentView `json:"replies"`
}

// AnchorView is every thread pinned at one anchor.
type AnchorView struct {
	Anchor  model.Anchor `json:"anchor"`
	Threads []ThreadView `json:"threads"`
}

// Frame is everything needed to draw the surface at one moment.
type Frame struct {
	ArtifactID  string                  `json:"artifactId"`
	Version     uint64                  `json:"version"`
	State       string                  `json:"state"`
	Metrics     geometry.Metrics        `json:"metrics"`
	Markers     []geometry.Marker       `json:"markers"`
	Overflow    []geometry.Marker       `json:"overflow"`
	PaddedLines []int                   `json:"paddedLines"`
	Colors      map[string]thread.Color `json:"colors"`
	Active      *AnchorView             `json:"active,omitempty"`
	Hovered     *AnchorView             `json:"hovered,omitempty"`
	Composer    *Composer               `json:"composer,omitempty"`
	Preview     *geometry.Marker        `json:"preview,omitempty"`
}

// SnapshotView is a comment client snapshot decorated for one viewer.
type SnapshotView struct {
	ArtifactID string                  `json:"artifactId"`
	Version    uint64                  `json:"version"`
	State      string                  `json:"state"`
	Comments   []model.Comment         `json:"comments"`
	Threads    []ThreadView            `json:"threads"`
	General    []CommentView           `json:"general"`
	Colors     map[string]thread.Color `json:"colors"`
}

type decorator struct {
	snap   *commentclient.Snapshot
	viewer model.Author
	people People
	names  []string
}

func newDecorator(snap *commentclient.Snapshot, viewer model.Author, people People) decorator {
	if people == nil {
		people = noPeople{}
	}
	return decorator{snap: snap, viewer: viewer, people: people, names: people.Names()}
}

func (d decorator) comment(c model.Comment) CommentView {
	return CommentView{
		Comment:     c,
		DisplayName: d.people.DisplayName(c.Author.Username),
		Avatar:      AvatarURL(c.Author, 24),
		Color:       d.snap.Colors().For(c.Author.Username),
		Edited:      c.Edited(),
		Mine:        d.viewer.UserID != "" && c.Author.UserID == d.viewer.UserID,
		Segments:    HighlightMentions(c.Content, d.names),
		HTML:        RenderHTML(c.Content, d.names),
		Reactions:   d.snap.ReactionsFor(c.ID, d.viewer.UserID),
	}
}

func (d decorator) thread(t thread.Thread) ThreadView {
	view := ThreadView{Root: d.comment(t.Root), Replies: make([]CommentView, 0, len(t.Replies))}
	for _, r := range t.Replies {
		view.Replies = append(view.Replies, d.comment(r))
	}
	return view
}

func (d decorator) anchor(anchor model.Anchor) *AnchorView {
	view := &AnchorView{Anchor: anchor, Threads: []ThreadView{}}
	for _, t := range d.snap.Threads() {
		if a, _ := t.Root.Anchor(); a == anchor {
			view.Threads = append(view.Threads, d.thread(t))
		}
	}
	return view
}

// ViewSnapshot decorates a client snapshot for viewer. Comments without a
// line are listed under General with their replies flattened in.
func ViewSnapshot(snap *commentclient.Snapshot, viewer model.Author, people People) SnapshotView {
	d := newDecorator(snap, viewer, people)
	view := SnapshotView{
		ArtifactID: snap.ArtifactID,
		Version:    snap.Version,
		State:      snap.State.String(),
		Comments:   snap.Comments,
		Threads:    make([]ThreadView, 0),
		General:    make([]CommentView, 0),
		Colors:     snap.Colors().AsMap(),
	}
	for _, t := range snap.Threads() {
		view.Threads = append(view.Threads, d.thread(t))
	}
	for _, c := range snap.Comments {
		if !c.Anchored() {
			view.General = append(view.General, d.comment(c))
		}
	}
	return view
}

// compose builds a frame from a snapshot, its layout and the interaction
// state.
func compose(snap *commentclient.Snapshot, layout geometry.Layout, st state, viewer model.Author, people People) Frame {
	d := newDecorator(snap, viewer, people)
	frame := Frame{
		ArtifactID:  snap.ArtifactID,
		Version:     snap.Version,
		State:       snap.State.String(),
		Metrics:     layout.Metrics,
		Markers:     layout.Markers,
		Overflow:    layout.Overflow,
		PaddedLines: layout.PaddedLines,
		Colors:      snap.Colors().AsMap(),
	}
	if st.active != nil {
		frame.Active = d.anchor(*st.active)
	}
	if st.hovered != nil && (st.active == nil || *st.hovered != *st.active) {
		frame.Hovered = d.anchor(*st.hovered)
	}
	if st.composer != nil {
		c := *st.composer
		frame.Composer = &c
		if c.Kind == ComposeNew {
			preview := layout.Preview(c.Anchor, viewer.Username, previewColor(snap.Colors(), viewer.Username))
			frame.Preview = &preview
		}
	}
	return frame
}

// previewColor is the viewer's colour, or the one they would get next.
func previewColor(colors thread.ColorMap, username string) thread.Color {
	if c, ok := colors.Lookup(username); ok {
		return c
	}
	return thread.Palette[colors.Len()%len(thread.Palette)]
}
