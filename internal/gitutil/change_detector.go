package gitutil

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ChangeDetector reports which tracked files in a repository's working tree
// differ from the index or are newly added, filtered through an extension
// allow-list. Deletions are excluded: a file that no longer exists has
// nothing to analyze.
type ChangeDetector struct {
	client     *Client
	extensions map[string]struct{}
}

// NewChangeDetector builds a detector restricted to the given file
// extensions (each including its leading dot, e.g. ".go").
func NewChangeDetector(client *Client, extensions []string) *ChangeDetector {
	allow := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allow[ext] = struct{}{}
	}
	return &ChangeDetector{client: client, extensions: allow}
}

// Changed returns the set of tracked files whose working-tree state differs
// from the index or that are newly added, restricted to allow-listed
// extensions. It is the local-porcelain-status equivalent the Scanner drives
// on every tick.
func (d *ChangeDetector) Changed(_ context.Context, repoPath string) ([]string, error) {
	repo, err := d.client.Open(repoPath)
	if err != nil {
		return nil, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, err
	}

	var changed []string
	for path, fileStatus := range status {
		if fileStatus.Worktree == git.Deleted || fileStatus.Staging == git.Deleted {
			continue
		}
		if fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified {
			continue
		}
		if !d.allowed(path) {
			continue
		}
		changed = append(changed, path)
	}
	return changed, nil
}

// Head returns the current HEAD SHA of the repository at repoPath.
func (d *ChangeDetector) Head(_ context.Context, repoPath string) (string, error) {
	repo, err := d.client.Open(repoPath)
	if err != nil {
		return "", err
	}
	return d.client.Head(repo)
}

// ChangedSince returns the files added or modified between sinceSHA and the
// repository's current HEAD, restricted to allow-listed extensions, along
// with the resolved HEAD SHA. It is used instead of Changed for repositories
// the Scanner tracks by commit (no dirty working tree to compare against).
func (d *ChangeDetector) ChangedSince(_ context.Context, repoPath, sinceSHA string) (files []string, headSHA string, err error) {
	repo, err := d.client.Open(repoPath)
	if err != nil {
		return nil, "", err
	}

	headSHA, err = d.client.Head(repo)
	if err != nil {
		return nil, "", err
	}
	if headSHA == sinceSHA {
		return nil, headSHA, nil
	}

	added, modified, _, err := d.client.Diff(repo, sinceSHA, headSHA)
	if err != nil {
		return nil, "", err
	}

	for _, path := range append(added, modified...) {
		if d.allowed(path) {
			files = append(files, path)
		}
	}
	return files, headSHA, nil
}

func (d *ChangeDetector) allowed(path string) bool {
	if len(d.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := d.extensions[ext]
	return ok
}
