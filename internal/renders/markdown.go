package renders

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	defaultWidth = 100
	maxWidth     = 120
)

// RenderMarkdown renders markdown for a terminal of the given width. On any
// rendering failure the input is returned unchanged.
func RenderMarkdown(markdown string) string {
	return renderWidth(markdown, defaultWidth)
}

func renderWidth(markdown string, width int) string {
	if strings.TrimSpace(markdown) == "" {
		return markdown
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithEmoji(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes markdown to w, rendered when w is a terminal and raw
// otherwise so pipes and redirections get plain text.
func Print(w io.Writer, markdown string) error {
	if !IsTerminal(w) {
		_, err := io.WriteString(w, markdown)
		return err
	}
	_, err := fmt.Fprint(w, renderWidth(markdown, terminalWidth(w.(*os.File))))
	return err
}

func terminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}
