package core

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	prefixContext = "  "
	prefixDelete  = "- "
	prefixInsert  = "+ "

	noNewlineMarker = `\ No newline at end of file`
)

// BuildDiff renders one file's change as a unified diff. MODIFIED changes
// carry the whole file as context: every line of both sides appears once,
// either unchanged, removed or added.
func BuildDiff(filePath string, oldContent, newContent *string, ct ChangeType) string {
	switch {
	case ct == ChangeAdded:
		return singleSided("+++ "+filePath, prefixInsert, deref(newContent))
	case ct == ChangeDeleted:
		return singleSided("--- "+filePath, prefixDelete, deref(oldContent))
	case oldContent == nil:
		return singleSided("+++ "+filePath, prefixInsert, deref(newContent))
	case newContent == nil:
		return singleSided("--- "+filePath, prefixDelete, deref(oldContent))
	}

	oldText := normalizeNewlines(*oldContent)
	newText := normalizeNewlines(*newContent)

	out := []string{
		"--- " + filePath,
		"+++ " + filePath,
		fmt.Sprintf("@@ %s %s @@", hunkRange("-", oldText), hunkRange("+", newText)),
	}

	for _, d := range lineDiff(oldText, newText) {
		prefix := prefixContext
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = prefixDelete
		case diffmatchpatch.DiffInsert:
			prefix = prefixInsert
		}
		out = appendLines(out, prefix, d.Text)
	}

	return strings.Join(out, "\n")
}

func singleSided(header, prefix, content string) string {
	return strings.Join(appendLines([]string{header}, prefix, content), "\n")
}

// lineDiff runs Myers on line tokens instead of characters, the way
// diff-match-patch documents its line mode.
func lineDiff(oldText, newText string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lines)
}

func appendLines(out []string, prefix, text string) []string {
	for _, line := range splitLines(text) {
		if strings.HasSuffix(line, "\n") {
			out = append(out, prefix+strings.TrimSuffix(line, "\n"))
			continue
		}
		out = append(out, prefix+line, noNewlineMarker)
	}
	return out
}

// splitLines keeps each line's terminator so the last line can be told apart
// when the file does not end with a newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func hunkRange(sign, text string) string {
	n := len(splitLines(text))
	if n == 0 {
		return sign + "0,0"
	}
	return fmt.Sprintf("%s1,%d", sign, n)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
