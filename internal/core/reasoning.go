package core

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minStructuredLength is how much text must survive a cut at the first
	// structural marker for the cut to be kept.
	minStructuredLength = 50
	// minKeptRatio abandons narrative filtering when less than this fraction
	// of the input would remain.
	minKeptRatio = 0.2
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

var structuralMarkers = []string{
	"summary",
	"review summary",
	"overall assessment",
	"issues found",
	"problems found",
	"suggestions",
	"recommendations",
	"评审总结",
	"总结",
	"发现的问题",
	"优化建议",
	"改进建议",
}

var narrativeOpeners = []string{
	"let me",
	"let's",
	"i will",
	"i'll",
	"i need to",
	"i'm going to",
	"i am going to",
	"first, i",
	"first i",
	"now i",
	"okay,",
	"okay so",
	"ok,",
	"alright",
	"我来",
	"让我",
	"首先，我",
	"首先我",
	"我将",
	"我需要",
	"好的，",
	"好的,",
}

var keepMarkers = []string{
	"problem",
	"issue",
	"suggest",
	"bug",
	"```",
	"问题",
	"建议",
}

// StripReasoning removes a model's thinking narrative from the start of a
// review. The result is always trimmed and StripReasoning(StripReasoning(x))
// equals StripReasoning(x).
func StripReasoning(text string) string {
	trimmed := strings.TrimSpace(removeThinkBlocks(text))
	if trimmed == "" {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if idx := firstStructuralLine(lines); idx >= 0 {
		if idx == 0 {
			return trimmed
		}
		rest := strings.TrimSpace(strings.Join(lines[idx:], "\n"))
		if utf8.RuneCountInString(rest) > minStructuredLength {
			return rest
		}
		return trimmed
	}

	return filterNarrative(trimmed, lines)
}

func removeThinkBlocks(text string) string {
	for {
		next := thinkBlock.ReplaceAllString(text, "")
		if next == text {
			return text
		}
		text = next
	}
}

func firstStructuralLine(lines []string) int {
	for i, line := range lines {
		if isStructural(line) {
			return i
		}
	}
	return -1
}

func isStructural(line string) bool {
	if strings.HasPrefix(strings.TrimSpace(line), "##") {
		return true
	}
	bare := strings.ToLower(stripDecoration(line))
	for _, m := range structuralMarkers {
		if strings.HasPrefix(bare, m) {
			return true
		}
	}
	return false
}

// stripDecoration drops markdown and emoji noise in front of a line, so
// "## 📝 Summary" and "**1. Summary**" both start with "summary".
func stripDecoration(line string) string {
	return strings.TrimLeftFunc(line, func(r rune) bool {
		switch r {
		case '#', '*', '>', '-', '_', '.', ':', '【', '[':
			return true
		}
		return unicode.IsSpace(r) || unicode.IsDigit(r) || unicode.Is(unicode.So, r)
	})
}

// filterNarrative drops paragraphs that open with a first person narrative
// clause. Skipping stops at a blank line or a heading, and lines that look
// like findings are kept even inside a skipped paragraph.
func filterNarrative(trimmed string, lines []string) string {
	var (
		kept     []string
		skipping bool
	)
	for _, line := range lines {
		bare := strings.TrimSpace(line)
		if bare == "" || strings.HasPrefix(bare, "#") {
			skipping = false
			kept = append(kept, line)
			continue
		}
		if isNarrativeOpener(bare) {
			skipping = true
		}
		if skipping && !containsAny(strings.ToLower(bare), keepMarkers) {
			continue
		}
		kept = append(kept, line)
	}

	filtered := strings.TrimSpace(strings.Join(kept, "\n"))
	if float64(utf8.RuneCountInString(filtered)) < minKeptRatio*float64(utf8.RuneCountInString(trimmed)) {
		return trimmed
	}
	return filtered
}

func isNarrativeOpener(line string) bool {
	lower := strings.ToLower(strings.TrimLeft(line, "*_> "))
	for _, o := range narrativeOpeners {
		if strings.HasPrefix(lower, o) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
