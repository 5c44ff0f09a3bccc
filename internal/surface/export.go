package surface

import (
	"sort"
	"strconv"
	"strings"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

// ExportSeparator sits between the source text and the comment listing.
const ExportSeparator = "\n---\n\n"

// ReviewerPrefix is the label given to anonymised authors.
const ReviewerPrefix = "Reviewer"

// CopyWithComments renders source followed by every anchored top-level
// comment and its replies, authors anonymised as "Reviewer A", "Reviewer B"
// in order of their first exported comment:
//
//	[line 2] Reviewer A: content
//	  -> Reviewer B: reply
//
// The separator is written even when there is nothing to list.
func CopyWithComments(source string, comments []model.Comment) string {
	roots := thread.TopLevel(comments)
	sort.SliceStable(roots, func(i, j int) bool {
		return *roots[i].LineNumber < *roots[j].LineNumber
	})

	exported := make([]model.Comment, 0, len(comments))
	replies := make(map[string][]model.Comment, len(roots))
	for _, root := range roots {
		exported = append(exported, root)
		replies[root.ID] = thread.RepliesOf(comments, root.ID)
		exported = append(exported, replies[root.ID]...)
	}
	labels := thread.Labels(exported, ReviewerPrefix)

	var b strings.Builder
	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(ExportSeparator)
	for _, root := range roots {
		b.WriteString("[line ")
		b.WriteString(strconv.Itoa(*root.LineNumber))
		b.WriteString("] ")
		writeEntry(&b, labels[root.Author.Username], root.Content, "")
		for _, reply := range replies[root.ID] {
			b.WriteString("  -> ")
			writeEntry(&b, labels[reply.Author.Username], reply.Content, "     ")
		}
	}
	return b.String()
}

// writeEntry writes "Label: content". Continuation lines of multi-line
// content are indented so they stay under their entry.
func writeEntry(b *strings.Builder, label, content, indent string) {
	b.WriteString(label)
	b.WriteString(": ")
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString(indent)
			b.WriteString("  ")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}
