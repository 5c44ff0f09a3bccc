// Package geometry maps comment anchors to marker positions on rendered
// source text and back.
//
// Horizontal positions are absolute within the code view. Vertical positions
// are relative to the top of the line's row, which starts with a padding band
// whenever the line carries a marker.
package geometry

import (
	"math"
	"sort"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

const (
	// MarkerSpacing separates markers that share an anchor, horizontally in
	// flow and vertically in the overflow overlay.
	MarkerSpacing = 12.0
	// OverflowMargin is the strip at the right edge of the viewport that
	// markers may not enter.
	OverflowMargin = 16.0
	// HitRadius is the pointer tolerance around a marker centre.
	HitRadius = 15.0
	// PaddingBand is the height reserved above a line that carries markers.
	PaddingBand = 14.0
	// MarkerY is the vertical centre of a marker inside the padding band.
	MarkerY = PaddingBand / 2
)

// Metrics describes the rendered code view.
type Metrics struct {
	CharWidth     float64 `json:"charWidth" validate:"gt=0"`
	GutterWidth   float64 `json:"gutterWidth" validate:"gte=0"`
	ViewportWidth float64 `json:"viewportWidth" validate:"gt=0"`
	LineHeight    float64 `json:"lineHeight,omitempty" validate:"gte=0"`
}

// Marker is one author's dot at one anchor.
type Marker struct {
	Anchor model.Anchor `json:"anchor"`
	Author string       `json:"author"`
	Color  thread.Color `json:"color"`
	Offset int          `json:"offsetIndex"`
	// CommentIDs are the author's top-level comments at this anchor, oldest
	// first. The first one is the thread a click replies to.
	CommentIDs []string `json:"commentIds"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Overflow   bool     `json:"overflow"`
	Preview    bool     `json:"preview,omitempty"`
}

// ThreadID is the comment a reply from this marker attaches to.
func (m Marker) ThreadID() string {
	if len(m.CommentIDs) == 0 {
		return ""
	}
	return m.CommentIDs[0]
}

// Layout is the computed marker placement for one comment snapshot.
type Layout struct {
	Metrics     Metrics  `json:"metrics"`
	Markers     []Marker `json:"markers"`
	Overflow    []Marker `json:"overflow"`
	PaddedLines []int    `json:"paddedLines"`
}

// PixelX is the in-flow horizontal centre of a marker.
func PixelX(m Metrics, column, offset int) float64 {
	return m.GutterWidth + float64(column)*m.CharWidth + float64(offset)*MarkerSpacing
}

// Overflows reports whether x falls into the right-edge margin.
func Overflows(m Metrics, x float64) bool {
	return x > m.ViewportWidth-OverflowMargin
}

// OverlayX is the horizontal centre of the overflow overlay column.
func OverlayX(m Metrics) float64 {
	return m.ViewportWidth - OverflowMargin/2
}

// ColumnAt maps a horizontal pointer position back to a column. Positions
// inside the gutter map to column 0; there is no upper bound.
func ColumnAt(m Metrics, x float64) int {
	if m.CharWidth <= 0 {
		return 0
	}
	col := int(math.Floor((x - m.GutterWidth) / m.CharWidth))
	if col < 0 {
		return 0
	}
	return col
}

// Compute places one marker per distinct (line, column, author) among the
// top-level anchored comments. Authors sharing an anchor get offsets 0, 1, 2
// in order of their first comment there. Anchors are not clamped to the
// source text.
func Compute(comments []model.Comment, colors thread.ColorMap, m Metrics) Layout {
	layout := Layout{Metrics: m, Markers: []Marker{}, Overflow: []Marker{}, PaddedLines: []int{}}

	type key struct {
		anchor model.Anchor
		author string
	}
	index := make(map[key]int)
	perAnchor := make(map[model.Anchor]int)
	var all []Marker

	for _, c := range thread.TopLevel(comments) {
		anchor, _ := c.Anchor()
		k := key{anchor: anchor, author: c.Author.Username}
		if i, ok := index[k]; ok {
			all[i].CommentIDs = append(all[i].CommentIDs, c.ID)
			continue
		}
		offset := perAnchor[anchor]
		perAnchor[anchor] = offset + 1
		index[k] = len(all)
		all = append(all, Marker{
			Anchor:     anchor,
			Author:     c.Author.Username,
			Color:      colors.For(c.Author.Username),
			Offset:     offset,
			CommentIDs: []string{c.ID},
			X:          PixelX(m, anchor.Column, offset),
			Y:          MarkerY,
		})
	}

	stacked := make(map[int]int)
	lines := make(map[int]struct{})
	for _, mk := range all {
		lines[mk.Anchor.Line] = struct{}{}
		if !Overflows(m, mk.X) {
			layout.Markers = append(layout.Markers, mk)
			continue
		}
		slot := stacked[mk.Anchor.Line]
		stacked[mk.Anchor.Line] = slot + 1
		mk.Overflow = true
		mk.X = OverlayX(m)
		mk.Y = MarkerY + float64(slot)*MarkerSpacing
		layout.Overflow = append(layout.Overflow, mk)
	}

	for line := range lines {
		layout.PaddedLines = append(layout.PaddedLines, line)
	}
	sort.Ints(layout.PaddedLines)
	return layout
}

// Padded reports whether line reserves a padding band.
func (l Layout) Padded(line int) bool {
	i := sort.SearchInts(l.PaddedLines, line)
	return i < len(l.PaddedLines) && l.PaddedLines[i] == line
}

// OnLine returns the in-flow and overflow markers of line.
func (l Layout) OnLine(line int) []Marker {
	var out []Marker
	for _, mk := range l.Markers {
		if mk.Anchor.Line == line {
			out = append(out, mk)
		}
	}
	for _, mk := range l.Overflow {
		if mk.Anchor.Line == line {
			out = append(out, mk)
		}
	}
	return out
}

// AtAnchor counts persisted markers at anchor, in flow or not.
func (l Layout) AtAnchor(anchor model.Anchor) int {
	n := 0
	for _, mk := range l.Markers {
		if mk.Anchor == anchor {
			n++
		}
	}
	for _, mk := range l.Overflow {
		if mk.Anchor == anchor {
			n++
		}
	}
	return n
}

// HitTest returns the marker on line nearest to (x, y) within HitRadius.
// y is relative to the top of the line's row. Ties go to the marker listed
// first.
func (l Layout) HitTest(line int, x, y float64) (Marker, bool) {
	var (
		best  Marker
		found bool
		dist  = math.Inf(1)
	)
	for _, mk := range l.OnLine(line) {
		d := math.Hypot(mk.X-x, mk.Y-y)
		if d <= HitRadius && d < dist {
			best, dist, found = mk, d, true
		}
	}
	return best, found
}

// Preview places the marker for a comment being composed at anchor. It takes
// the next offset after the persisted markers there and never changes them.
func (l Layout) Preview(anchor model.Anchor, author string, color thread.Color) Marker {
	offset := l.AtAnchor(anchor)
	mk := Marker{
		Anchor:  anchor,
		Author:  author,
		Color:   color,
		Offset:  offset,
		X:       PixelX(l.Metrics, anchor.Column, offset),
		Y:       MarkerY,
		Preview: true,
	}
	if Overflows(l.Metrics, mk.X) {
		slot := 0
		for _, o := range l.Overflow {
			if o.Anchor.Line == anchor.Line {
				slot++
			}
		}
		mk.Overflow = true
		mk.X = OverlayX(l.Metrics)
		mk.Y = MarkerY + float64(slot)*MarkerSpacing
	}
	return mk
}
