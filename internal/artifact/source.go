// Package artifact reads the immutable source text comments are anchored to.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

var ErrNotFound = errors.New("artifact not found")

// DefaultExtension is appended to an artifact's name to find its file.
const DefaultExtension = ".py"

// Text is one artifact's source and where it came from.
type Text struct {
	Locator  model.ArtifactLocator `json:"artifact"`
	Path     string                `json:"path"`
	Revision string                `json:"revision,omitempty"`
	Content  string                `json:"content"`
}

// Lines splits the content into lines without trailing newline characters.
func (t Text) Lines() []string {
	if t.Content == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(strings.ReplaceAll(t.Content, "\r\n", "\n"), "\n"), "\n")
}

type Source interface {
	Read(ctx context.Context, artifactID string) (Text, error)
}

// pathFor maps an artifact id to "<owner>/<period>/<name><ext>".
func pathFor(artifactID, ext string) (model.ArtifactLocator, string, error) {
	locator, ok := model.ParseArtifactID(artifactID)
	if !ok {
		return model.ArtifactLocator{}, "", fmt.Errorf("invalid artifact id %q", artifactID)
	}
	for _, part := range []string{locator.Owner, locator.Period, locator.Name} {
		if part == "." || part == ".." {
			return model.ArtifactLocator{}, "", fmt.Errorf("invalid artifact id %q", artifactID)
		}
	}
	return locator, locator.ID() + ext, nil
}

// Static serves fixed texts, keyed by artifact id. It backs the CLI's
// --source flag and tests.
type Static map[string]string

func (s Static) Read(_ context.Context, artifactID string) (Text, error) {
	content, ok := s[artifactID]
	if !ok {
		return Text{}, ErrNotFound
	}
	locator, _ := model.ParseArtifactID(artifactID)
	return Text{Locator: locator, Path: artifactID, Content: content}, nil
}
