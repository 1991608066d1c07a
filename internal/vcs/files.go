package vcs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sanix-darker/aireview/internal/core"
)

// FilesSource compares two files, or two directories file by file. A side
// that does not exist makes every file of the other side ADDED or DELETED.
type FilesSource struct {
	OldPath string
	NewPath string
}

func (s FilesSource) Changes(ctx context.Context) ([]core.CodeChange, error) {
	oldInfo, oldErr := os.Stat(s.OldPath)
	newInfo, newErr := os.Stat(s.NewPath)
	if oldErr != nil && !errors.Is(oldErr, fs.ErrNotExist) {
		return nil, oldErr
	}
	if newErr != nil && !errors.Is(newErr, fs.ErrNotExist) {
		return nil, newErr
	}
	if oldErr != nil && newErr != nil {
		return nil, fmt.Errorf("neither %s nor %s exists", s.OldPath, s.NewPath)
	}

	if (oldInfo != nil && oldInfo.IsDir()) || (newInfo != nil && newInfo.IsDir()) {
		return s.dirChanges(ctx, oldInfo, newInfo)
	}

	oldContent, err := readText(s.OldPath)
	if err != nil {
		return nil, err
	}
	newContent, err := readText(s.NewPath)
	if err != nil {
		return nil, err
	}

	path := s.NewPath
	if newContent == nil {
		path = s.OldPath
	}
	change, ok := build(path, oldContent, newContent)
	if !ok {
		return nil, ErrNoChanges
	}
	return []core.CodeChange{change}, nil
}

func (s FilesSource) dirChanges(ctx context.Context, oldInfo, newInfo os.FileInfo) ([]core.CodeChange, error) {
	if oldInfo != nil && newInfo != nil && oldInfo.IsDir() != newInfo.IsDir() {
		return nil, fmt.Errorf("cannot compare a file with a directory: %s, %s", s.OldPath, s.NewPath)
	}

	oldFiles, err := listFiles(s.OldPath, oldInfo)
	if err != nil {
		return nil, err
	}
	newFiles, err := listFiles(s.NewPath, newInfo)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var rels []string
	for _, set := range []map[string]struct{}{oldFiles, newFiles} {
		for rel := range set {
			if _, ok := seen[rel]; !ok {
				seen[rel] = struct{}{}
				rels = append(rels, rel)
			}
		}
	}
	sort.Strings(rels)

	var changes []core.CodeChange
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var oldContent, newContent *string
		if _, ok := oldFiles[rel]; ok {
			if oldContent, err = readText(filepath.Join(s.OldPath, rel)); err != nil {
				return nil, err
			}
		}
		if _, ok := newFiles[rel]; ok {
			if newContent, err = readText(filepath.Join(s.NewPath, rel)); err != nil {
				return nil, err
			}
		}
		if change, ok := build(filepath.ToSlash(rel), oldContent, newContent); ok {
			changes = append(changes, change)
		}
	}

	if len(changes) == 0 {
		return nil, ErrNoChanges
	}
	return changes, nil
}

// listFiles returns the regular files under dir relative to it. A missing
// dir has no files.
func listFiles(dir string, info os.FileInfo) (map[string]struct{}, error) {
	files := map[string]struct{}{}
	if info == nil {
		return files, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[rel] = struct{}{}
		return nil
	})
	return files, err
}

// readText returns the file content, nil when the file does not exist or is
// binary.
func readText(path string) (*string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if isBinary(b) {
		return nil, nil
	}
	s := string(b)
	return &s, nil
}
