// Package vcs turns files on disk and git history into the code changes a
// review is run on.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5/utils/binary"
	"github.com/sanix-darker/aireview/internal/core"
)

// ErrNoChanges is returned when a source has nothing to review.
var ErrNoChanges = errors.New("no changes to review")

// Source produces the code changes to review.
type Source interface {
	Changes(ctx context.Context) ([]core.CodeChange, error)
}

// isBinary reports whether content looks like a binary file, using the same
// heuristic as git.
func isBinary(content []byte) bool {
	bin, err := binary.IsBinary(bytes.NewReader(content))
	return err == nil && bin
}

// matchesPaths reports whether path is one of filters or lies under one of
// them. No filter matches everything.
func matchesPaths(path string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		f = strings.Trim(strings.TrimSpace(f), "/")
		if f == "" || f == "." || path == f || strings.HasPrefix(path, f+"/") {
			return true
		}
	}
	return false
}

// build creates the change for a pair of optional contents.
func build(path string, oldContent, newContent *string) (core.CodeChange, bool) {
	switch {
	case oldContent == nil && newContent == nil:
		return core.CodeChange{}, false
	case oldContent == nil:
		return core.Added(path, *newContent), true
	case newContent == nil:
		return core.Deleted(path, *oldContent), true
	case *oldContent == *newContent:
		return core.CodeChange{}, false
	default:
		return core.Modified(path, *oldContent, *newContent), true
	}
}
