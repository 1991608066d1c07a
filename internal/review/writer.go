package review

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// DefaultOutputDir is where reports go when nothing else is configured.
const DefaultOutputDir = ".ai-codereview"

// Writer saves review reports as Markdown files.
type Writer struct {
	// Dir is absolute, or relative to BaseDir. A leading ~ is expanded.
	Dir string
	// BaseDir defaults to the working directory.
	BaseDir string
	now     func() time.Time
}

// NewWriter returns a Writer saving under dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, now: time.Now}
}

// Save writes the report of one or more results and returns the file path.
// Files are named ai-code-review-YYYYMMDD-HHMM.md; a second save in the same
// minute overwrites the first.
func (w *Writer) Save(results ...Result) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("no review results to save")
	}

	dir, err := w.resolveDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}

	now := time.Now
	if w.now != nil {
		now = w.now
	}
	path := filepath.Join(dir, ReportFileName(now()))

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Report())
	}
	if err := os.WriteFile(path, []byte(strings.Join(parts, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("write review report: %w", err)
	}
	return path, nil
}

// ReportFileName returns the report file name for t.
func ReportFileName(t time.Time) string {
	return "ai-code-review-" + t.Format("20060102-1504") + ".md"
}

func (w *Writer) resolveDir() (string, error) {
	dir := strings.TrimSpace(w.Dir)
	if dir == "" {
		dir = DefaultOutputDir
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("output dir %q: %w", w.Dir, err)
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}

	base := w.BaseDir
	if base == "" {
		if base, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
	}
	return filepath.Join(base, dir), nil
}
