package thread

import (
	"sort"
	"strings"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// Color is one palette slot. Dot is the marker fill; Name is a stable
// identifier clients map to their own background/border styles.
type Color struct {
	Name string `json:"name"`
	Dot  string `json:"dot"`
}

// Palette is the author colour palette, assigned in first-comment order.
var Palette = []Color{
	{Name: "blue", Dot: "#3b82f6"},
	{Name: "emerald", Dot: "#10b981"},
	{Name: "amber", Dot: "#f59e0b"},
	{Name: "pink", Dot: "#ec4899"},
	{Name: "indigo", Dot: "#6366f1"},
	{Name: "teal", Dot: "#14b8a6"},
}

// FallbackColor is used for authors missing from a ColorMap, such as
// reply-only authors.
var FallbackColor = Color{Name: "indigo", Dot: "#6366f1"}

// ColorMap maps author usernames to palette colours.
type ColorMap struct {
	colors map[string]Color
	order  []string
}

// AssignColors walks comments oldest first and gives each newly seen author
// Palette[seen mod len(Palette)]. Callers pass the top-level comment list.
// The map is a pure function of the list and is rebuilt on every change.
func AssignColors(comments []model.Comment) ColorMap {
	sorted := make([]model.Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	m := ColorMap{colors: make(map[string]Color)}
	for _, c := range sorted {
		name := c.Author.Username
		if _, seen := m.colors[name]; seen {
			continue
		}
		m.colors[name] = Palette[len(m.order)%len(Palette)]
		m.order = append(m.order, name)
	}
	return m
}

// For returns the colour assigned to username, or FallbackColor.
func (m ColorMap) For(username string) Color {
	if c, ok := m.colors[username]; ok {
		return c
	}
	return FallbackColor
}

// Lookup returns the assigned colour and whether username has one.
func (m ColorMap) Lookup(username string) (Color, bool) {
	c, ok := m.colors[username]
	return c, ok
}

// Authors lists usernames in assignment order.
func (m ColorMap) Authors() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m ColorMap) Len() int { return len(m.order) }

// AsMap returns a copy keyed by username, for JSON responses.
func (m ColorMap) AsMap() map[string]Color {
	out := make(map[string]Color, len(m.colors))
	for k, v := range m.colors {
		out[k] = v
	}
	return out
}

// Labels assigns sequential anonymous labels ("Reviewer A", "Reviewer B", ...)
// in order of each author's first comment. Unlike AssignColors there is no
// wrap-around: after Z come AA, AB, and so on.
func Labels(comments []model.Comment, prefix string) map[string]string {
	sorted := make([]model.Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	labels := make(map[string]string)
	for _, c := range sorted {
		if _, seen := labels[c.Author.Username]; seen {
			continue
		}
		labels[c.Author.Username] = prefix + " " + letters(len(labels))
	}
	return labels
}

// letters renders n (0-based) as A, B, ..., Z, AA, AB, ...
func letters(n int) string {
	var b strings.Builder
	var out []byte
	for n >= 0 {
		out = append(out, byte('A'+n%26))
		n = n/26 - 1
	}
	for i := len(out) - 1; i >= 0; i-- {
		b.WriteByte(out[i])
	}
	return b.String()
}
