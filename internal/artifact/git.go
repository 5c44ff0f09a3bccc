package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/TWLS151/Soootudy-sub000/internal/model"
)

// GitSource reads artifacts from the head of a branch in a local checkout.
type GitSource struct {
	dir    string
	branch string
	ext    string

	mu   sync.Mutex
	repo *git.Repository
}

func NewGitSource(dir, branch string) *GitSource {
	if branch == "" {
		branch = "main"
	}
	return &GitSource{dir: dir, branch: branch, ext: DefaultExtension}
}

func (s *GitSource) open() (*git.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return s.repo, nil
	}
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	s.repo = repo
	return repo, nil
}

func (s *GitSource) headCommit() (*object.Commit, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(s.branch), true)
	if err != nil {
		return nil, fmt.Errorf("read branch ref %s: %w", s.branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read head commit: %w", err)
	}
	return commit, nil
}

func (s *GitSource) Read(_ context.Context, artifactID string) (Text, error) {
	locator, path, err := pathFor(artifactID, s.ext)
	if err != nil {
		return Text{}, err
	}
	commit, err := s.headCommit()
	if err != nil {
		return Text{}, err
	}
	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return Text{}, ErrNotFound
	}
	if err != nil {
		return Text{}, fmt.Errorf("read %s: %w", path, err)
	}
	content, err := file.Contents()
	if err != nil {
		return Text{}, fmt.Errorf("read %s contents: %w", path, err)
	}
	return Text{Locator: locator, Path: path, Revision: commit.Hash.String(), Content: content}, nil
}

// List returns the ids of every artifact file at the branch head, sorted.
// Only files exactly three levels deep with the source extension count.
func (s *GitSource) List(_ context.Context) ([]string, error) {
	commit, err := s.headCommit()
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read head tree: %w", err)
	}
	ids := make([]string, 0)
	err = tree.Files().ForEach(func(f *object.File) error {
		if !strings.HasSuffix(f.Name, s.ext) {
			return nil
		}
		id := strings.TrimSuffix(f.Name, s.ext)
		if _, ok := model.ParseArtifactID(id); ok {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk head tree: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Refresh drops the cached repository handle so the next read sees new
// commits written by other processes.
func (s *GitSource) Refresh() {
	s.mu.Lock()
	s.repo = nil
	s.mu.Unlock()
}
