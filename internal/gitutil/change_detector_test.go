package gitutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi\n"), 0o644))
	_, err = worktree.Add(".")
	require.NoError(t, err)
	_, err = worktree.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir
}

func TestChanged_ReturnsModifiedAndUntrackedAllowedFiles(t *testing.T) {
	dir := initTestRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi\n\nmore\n"), 0o644))

	detector := NewChangeDetector(NewClient(slog.Default()), []string{".go"})
	changed, err := detector.Changed(context.Background(), dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"main.go", "new.go"}, changed)
}

func TestChanged_ExcludesDeletedFiles(t *testing.T) {
	dir := initTestRepo(t)

	require.NoError(t, os.Remove(filepath.Join(dir, "main.go")))

	detector := NewChangeDetector(NewClient(slog.Default()), []string{".go"})
	changed, err := detector.Changed(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, changed)
}

func TestChanged_EmptyWhenNothingChanged(t *testing.T) {
	dir := initTestRepo(t)

	detector := NewChangeDetector(NewClient(slog.Default()), []string{".go"})
	changed, err := detector.Changed(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, changed)
}

func commitFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add(".")
	require.NoError(t, err)
	hash, err := worktree.Commit("update", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestHead_ReturnsCurrentCommitSHA(t *testing.T) {
	dir := initTestRepo(t)

	detector := NewChangeDetector(NewClient(slog.Default()), []string{".go"})
	head, err := detector.Head(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, head, 40)
}

func TestChangedSince_ReturnsFilesAddedOrModifiedBetweenCommits(t *testing.T) {
	dir := initTestRepo(t)

	detector := NewChangeDetector(NewClient(slog.Default()), []string{".go"})
	baseline, err := detector.Head(context.Background(), dir)
	require.NoError(t, err)

	commitFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	commitFile(t, dir, "new.go", "package main\n")
	head := commitFile(t, dir, "README.md", "# hi\n\nmore\n")

	changed, resolvedHead, err := detector.ChangedSince(context.Background(), dir, baseline)
	require.NoError(t, err)
	assert.Equal(t, head, resolvedHead)
	assert.ElementsMatch(t, []string{"main.go", "new.go"}, changed)
}

func TestChangedSince_EmptyWhenBaselineIsCurrentHead(t *testing.T) {
	dir := initTestRepo(t)

	detector := NewChangeDetector(NewClient(slog.Default()), []string{".go"})
	head, err := detector.Head(context.Background(), dir)
	require.NoError(t, err)

	changed, resolvedHead, err := detector.ChangedSince(context.Background(), dir, head)
	require.NoError(t, err)
	assert.Equal(t, head, resolvedHead)
	assert.Empty(t, changed)
}
