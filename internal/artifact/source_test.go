package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFiles(t *testing.T, dir string, files map[string]string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(dir, false)
	}
	require.NoError(t, err)

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := worktree.Add(path)
		require.NoError(t, err)
	}
	hash, err := worktree.Commit("add solutions", &git.CommitOptions{
		Author: &object.Signature{Name: "jsc", Email: "jsc@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)))
	return hash
}

func TestGitSourceReadsBranchHead(t *testing.T) {
	dir := t.TempDir()
	hash := commitFiles(t, dir, map[string]string{
		"jsc/26-02-w1/swea-2005.py": "n = int(input())\nprint(n)\n",
		"jsc/26-02-w1/swea-2005.md": "notes",
		"README.md":                 "root",
	})
	src := NewGitSource(dir, "main")

	text, err := src.Read(context.Background(), "jsc/26-02-w1/swea-2005")

	require.NoError(t, err)
	assert.Equal(t, "jsc/26-02-w1/swea-2005.py", text.Path)
	assert.Equal(t, hash.String(), text.Revision)
	assert.Equal(t, []string{"n = int(input())", "print(n)"}, text.Lines())
	assert.Equal(t, "jsc", text.Locator.Owner)
}

func TestGitSourceMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	commitFiles(t, dir, map[string]string{"a/b/c.py": "x"})
	src := NewGitSource(dir, "")

	_, err := src.Read(context.Background(), "a/b/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Read(context.Background(), "a/b")
	assert.Error(t, err)

	_, err = src.Read(context.Background(), "a/../c")
	assert.Error(t, err)

	_, err = NewGitSource(t.TempDir(), "main").Read(context.Background(), "a/b/c")
	assert.Error(t, err)
}

func TestGitSourceListAndRefresh(t *testing.T) {
	dir := t.TempDir()
	commitFiles(t, dir, map[string]string{
		"jsc/26-02-w1/swea-2005.py": "x",
		"kim/26-02-w2/boj-1000.py":  "y",
		"kim/26-02-w2/deep/x.py":    "z",
		"kim/notes.py":              "w",
	})
	src := NewGitSource(dir, "main")

	ids, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"jsc/26-02-w1/swea-2005", "kim/26-02-w2/boj-1000"}, ids)

	commitFiles(t, dir, map[string]string{"lee/26-02-w3/boj-2000.py": "v"})
	src.Refresh()
	ids, err = src.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestStaticSource(t *testing.T) {
	src := Static{"a/b/c": "line1\r\nline2"}

	text, err := src.Read(context.Background(), "a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"line1", "line2"}, text.Lines())

	_, err = src.Read(context.Background(), "x/y/z")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, Text{}.Lines())
}

func TestObjectSourceKey(t *testing.T) {
	src, err := NewObjectSource("localhost:9000", "key", "secret", "artifacts", false)
	require.NoError(t, err)

	key, err := src.Key("jsc/26-02-w1/swea-2005")
	require.NoError(t, err)
	assert.Equal(t, "jsc/26-02-w1/swea-2005.py", key)

	_, err = src.Key("jsc/26-02-w1")
	assert.Error(t, err)
}

func TestConfigurePrefersGit(t *testing.T) {
	source, err := Configure(Options{RepoDir: t.TempDir(), Endpoint: "localhost:9000"})
	require.NoError(t, err)
	_, ok := source.(*GitSource)
	assert.True(t, ok)

	source, err = Configure(Options{Endpoint: "localhost:9000", Bucket: "artifacts"})
	require.NoError(t, err)
	_, ok = source.(*ObjectSource)
	assert.True(t, ok)

	source, err = Configure(Options{})
	require.NoError(t, err)
	assert.Nil(t, source)
}
