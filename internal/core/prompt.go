package core

import (
	"errors"
	"fmt"
	"strings"
)

// CodePlaceholder is replaced by the rendered diffs of every change.
const CodePlaceholder = "{code}"

const (
	fileSeparator = "\n\n---\n\n"
	noChanges     = "No code changes to review."
)

var ErrMissingPlaceholder = errors.New("template is missing the " + CodePlaceholder + " placeholder")

// ValidateTemplate is run when a user template is saved, never at assembly
// time.
func ValidateTemplate(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("template is empty")
	}
	if !strings.Contains(text, CodePlaceholder) {
		return ErrMissingPlaceholder
	}
	return nil
}

// Assembler builds the final prompt sent to the model.
type Assembler struct {
	// Language is the response language code ("en", "zh", ...).
	Language string
}

func NewAssembler(language string) Assembler {
	return Assembler{Language: language}
}

// Assemble substitutes the rendered changes into the template and wraps it
// with the output format directives, once before and once after.
func (a Assembler) Assemble(template string, changes []CodeChange, templateName string) string {
	code := BuildCodeContent(changes)

	body := strings.ReplaceAll(template, CodePlaceholder, code)
	if !strings.Contains(template, CodePlaceholder) {
		body = strings.TrimRight(template, "\n") + "\n\n" + code
	}

	directives := a.directives(templateName)

	var sb strings.Builder
	if name := strings.TrimSpace(templateName); name != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", name))
	}
	sb.WriteString(directives)
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n\n")
	sb.WriteString(directives)
	sb.WriteString("\n")
	return sb.String()
}

// BuildCodeContent joins the diff of every change with a separator rule.
func BuildCodeContent(changes []CodeChange) string {
	if len(changes) == 0 {
		return noChanges
	}
	blocks := make([]string, 0, len(changes))
	for _, c := range changes {
		blocks = append(blocks, c.Diff())
	}
	return strings.Join(blocks, fileSeparator)
}

type directiveSet struct {
	header   string
	language string
	noFence  string
	noReason string
	follow   string
}

var directiveSets = map[string]directiveSet{
	"en": {
		header:   "## Output requirements",
		language: "- Respond only in %s.",
		noFence:  "- Do not wrap the whole answer in a code block (no ``` around the response).",
		noReason: "- Do not describe your reasoning or thinking process. Start directly with the review.",
		follow:   "- Follow the structure of the %q template exactly.",
	},
	"zh": {
		header:   "## 输出要求",
		language: "- 只能使用%s回答。",
		noFence:  "- 不要把整个回答包在代码块中（回答前后不要使用 ```）。",
		noReason: "- 不要输出推理或思考过程，直接给出评审结果。",
		follow:   "- 严格按照“%s”模板的结构输出。",
	},
}

var languageNames = map[string]map[string]string{
	"en": {"en": "English", "zh": "Chinese"},
	"zh": {"en": "英文", "zh": "中文"},
}

func (a Assembler) directives(templateName string) string {
	lang := strings.ToLower(strings.TrimSpace(a.Language))
	if lang == "" {
		lang = "en"
	}
	set, ok := directiveSets[lang]
	names := languageNames[lang]
	if !ok {
		set = directiveSets["en"]
		names = languageNames["en"]
	}

	langName, ok := names[lang]
	if !ok {
		langName = a.Language
	}
	if strings.TrimSpace(templateName) == "" {
		templateName = "review"
	}

	lines := []string{
		set.header,
		fmt.Sprintf(set.language, langName),
		set.noFence,
		set.noReason,
		fmt.Sprintf(set.follow, templateName),
	}
	return strings.Join(lines, "\n")
}
