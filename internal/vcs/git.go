package vcs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/sanix-darker/aireview/internal/core"
)

// CommitSource reviews what a commit changed compared to its first parent.
// A root commit adds every file it contains.
type CommitSource struct {
	RepoPath string
	// Revision is anything git rev-parse understands; HEAD when empty.
	Revision string
	// Paths restricts the review to these files or directories.
	Paths []string
}

func (s CommitSource) Changes(ctx context.Context) ([]core.CodeChange, error) {
	repo, err := openRepo(s.RepoPath)
	if err != nil {
		return nil, err
	}

	rev := s.Revision
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("read parent of %s: %w", hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	diff, err := object.DiffTreeContext(ctx, parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diff commit %s: %w", hash, err)
	}

	var changes []core.CodeChange
	for _, ch := range diff {
		change, ok, err := commitChange(ch, s.Paths)
		if err != nil {
			return nil, err
		}
		if ok {
			changes = append(changes, change)
		}
	}
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].FilePath < changes[j].FilePath })
	return changes, nil
}

func commitChange(ch *object.Change, paths []string) (core.CodeChange, bool, error) {
	path := ch.To.Name
	if path == "" {
		path = ch.From.Name
	}
	if !matchesPaths(path, paths) {
		return core.CodeChange{}, false, nil
	}

	action, err := ch.Action()
	if err != nil {
		return core.CodeChange{}, false, err
	}
	from, to, err := ch.Files()
	if err != nil {
		return core.CodeChange{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	oldContent, err := fileText(from)
	if err != nil {
		return core.CodeChange{}, false, err
	}
	newContent, err := fileText(to)
	if err != nil {
		return core.CodeChange{}, false, err
	}

	// A modification of a file that was or became binary is not reviewable
	// as text; neither are submodules.
	if action == merkletrie.Modify && (oldContent == nil || newContent == nil) {
		return core.CodeChange{}, false, nil
	}
	change, ok := build(path, oldContent, newContent)
	return change, ok, nil
}

func fileText(f *object.File) (*string, error) {
	if f == nil {
		return nil, nil
	}
	bin, err := f.IsBinary()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if bin {
		return nil, nil
	}
	s, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return &s, nil
}

// WorktreeSource reviews uncommitted work, staged or not, against HEAD.
// Untracked files count as added.
type WorktreeSource struct {
	RepoPath string
	Paths    []string
}

func (s WorktreeSource) Changes(ctx context.Context) ([]core.CodeChange, error) {
	repo, err := openRepo(s.RepoPath)
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	var head *object.Commit
	ref, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// no commit yet
	case err != nil:
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	default:
		if head, err = repo.CommitObject(ref.Hash()); err != nil {
			return nil, fmt.Errorf("read HEAD commit: %w", err)
		}
	}

	paths := make([]string, 0, len(status))
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		if matchesPaths(path, s.Paths) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	root := wt.Filesystem.Root()
	var changes []core.CodeChange
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		oldContent, err := headText(head, path)
		if err != nil {
			return nil, err
		}
		newContent, err := readText(filepath.Join(root, filepath.FromSlash(path)))
		if err != nil {
			return nil, err
		}
		if oldContent != nil && newContent == nil && fileExists(filepath.Join(root, filepath.FromSlash(path))) {
			// became binary
			continue
		}
		if change, ok := build(path, oldContent, newContent); ok {
			changes = append(changes, change)
		}
	}
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}
	return changes, nil
}

func headText(head *object.Commit, path string) (*string, error) {
	if head == nil {
		return nil, nil
	}
	f, err := head.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at HEAD: %w", path, err)
	}
	return fileText(f)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func openRepo(path string) (*git.Repository, error) {
	if path == "" {
		path = "."
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", path, err)
	}
	return repo, nil
}
