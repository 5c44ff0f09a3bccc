package surface

import (
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Segment is a run of comment text, either plain or an @mention.
type Segment struct {
	Text    string `json:"text"`
	Mention bool   `json:"mention,omitempty"`
}

func mentionPattern(names []string) *regexp.Regexp {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			sorted = append(sorted, n)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	// Longer names first so "@Kim Lee" is not cut short by "@Kim".
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile("@(?:" + strings.Join(quoted, "|") + ")")
}

// HighlightMentions splits content into plain and mention segments. Only
// "@name" for a known name counts, matched case-sensitively.
func HighlightMentions(content string, names []string) []Segment {
	pattern := mentionPattern(names)
	if pattern == nil || content == "" {
		return []Segment{{Text: content}}
	}
	var out []Segment
	last := 0
	for _, loc := range pattern.FindAllStringIndex(content, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: content[last:loc[0]]})
		}
		out = append(out, Segment{Text: content[loc[0]:loc[1]], Mention: true})
		last = loc[1]
	}
	if last < len(content) {
		out = append(out, Segment{Text: content[last:]})
	}
	if len(out) == 0 {
		return []Segment{{Text: content}}
	}
	return out
}

var strict = bluemonday.StrictPolicy()

// RenderHTML renders content as safe HTML with mentions wrapped in
// <span class="mention">. Any markup in the comment is dropped.
func RenderHTML(content string, names []string) string {
	var b strings.Builder
	for _, seg := range HighlightMentions(content, names) {
		text := strict.Sanitize(seg.Text)
		if seg.Mention {
			b.WriteString(`<span class="mention">`)
			b.WriteString(text)
			b.WriteString(`</span>`)
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}
