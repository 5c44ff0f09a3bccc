package commentclient

import (
	"sync"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

type State int

const (
	Unloaded State = iota
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Snapshot is one immutable load result. Threads and colours are derived on
// first use and then reused for the lifetime of the snapshot.
type Snapshot struct {
	ArtifactID string
	Version    uint64
	State      State
	Comments   []model.Comment
	Reactions  []model.Reaction

	once    sync.Once
	threads []thread.Thread
	colors  thread.ColorMap
}

func newSnapshot(artifactID string, version uint64, state State, comments []model.Comment, reactions []model.Reaction) *Snapshot {
	if comments == nil {
		comments = []model.Comment{}
	}
	if reactions == nil {
		reactions = []model.Reaction{}
	}
	return &Snapshot{
		ArtifactID: artifactID,
		Version:    version,
		State:      state,
		Comments:   comments,
		Reactions:  reactions,
	}
}

func (s *Snapshot) derive() {
	s.once.Do(func() {
		top := thread.TopLevel(s.Comments)
		s.colors = thread.AssignColors(top)
		s.threads = thread.Build(s.Comments)
	})
}

// Threads returns the top-level threads with their replies.
func (s *Snapshot) Threads() []thread.Thread {
	s.derive()
	return s.threads
}

// Colors returns the author colour map of the top-level comments.
func (s *Snapshot) Colors() thread.ColorMap {
	s.derive()
	return s.colors
}

// TopLevel returns the anchored top-level comments, oldest first.
func (s *Snapshot) TopLevel() []model.Comment {
	threads := s.Threads()
	out := make([]model.Comment, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.Root)
	}
	return out
}

// Comment finds a comment by id.
func (s *Snapshot) Comment(id string) (model.Comment, bool) {
	for _, c := range s.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return model.Comment{}, false
}

// ReactionsFor tallies the reactions on commentID for viewerID.
func (s *Snapshot) ReactionsFor(commentID, viewerID string) []thread.ReactionGroup {
	return thread.GroupReactions(s.Reactions, commentID, viewerID)
}
