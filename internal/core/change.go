package core

import (
	"errors"
	"fmt"
	"strings"
)

// ChangeType describes what happened to a file between two snapshots.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeDeleted  ChangeType = "DELETED"
)

var ErrInvalidChange = errors.New("invalid code change")

// CodeChange is one file's delta. A nil content pointer means the side does
// not exist (added or deleted file); an empty string is an empty file.
type CodeChange struct {
	FilePath   string     `json:"file_path"`
	OldContent *string    `json:"old_content,omitempty"`
	NewContent *string    `json:"new_content,omitempty"`
	ChangeType ChangeType `json:"change_type"`
}

func Added(path, content string) CodeChange {
	return CodeChange{FilePath: path, NewContent: &content, ChangeType: ChangeAdded}
}

func Deleted(path, content string) CodeChange {
	return CodeChange{FilePath: path, OldContent: &content, ChangeType: ChangeDeleted}
}

func Modified(path, oldContent, newContent string) CodeChange {
	return CodeChange{
		FilePath:   path,
		OldContent: &oldContent,
		NewContent: &newContent,
		ChangeType: ChangeModified,
	}
}

// Validate checks the per-type content requirements. MODIFIED tolerates a
// missing side, it only needs one of them.
func (c CodeChange) Validate() error {
	if strings.TrimSpace(c.FilePath) == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidChange)
	}
	switch c.ChangeType {
	case ChangeAdded:
		if c.NewContent == nil {
			return fmt.Errorf("%w: %s is ADDED but has no new content", ErrInvalidChange, c.FilePath)
		}
	case ChangeDeleted:
		if c.OldContent == nil {
			return fmt.Errorf("%w: %s is DELETED but has no old content", ErrInvalidChange, c.FilePath)
		}
	case ChangeModified:
		if c.OldContent == nil && c.NewContent == nil {
			return fmt.Errorf("%w: %s is MODIFIED but has no content at all", ErrInvalidChange, c.FilePath)
		}
	default:
		return fmt.Errorf("%w: %s has unknown change type %q", ErrInvalidChange, c.FilePath, c.ChangeType)
	}
	return nil
}

// Diff renders the change with BuildDiff. It is computed on every call.
func (c CodeChange) Diff() string {
	return BuildDiff(c.FilePath, c.OldContent, c.NewContent, c.ChangeType)
}
