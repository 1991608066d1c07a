package review

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/sanix-darker/aireview/internal/core"
)

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "concise"

const templateExt = ".md"

// ErrTemplateNotFound is returned when neither the store nor the built-in
// set has a template of the requested name.
var ErrTemplateNotFound = errors.New("template not found")

var templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Template is a named prompt with a {code} placeholder.
type Template struct {
	Name        string
	Description string
	Content     string
	BuiltIn     bool
}

const reviewRules = `Requirements:
1. Be brief and only point out important problems.
2. Keep every problem to three or four sentences.
3. Make suggestions concrete and actionable.
4. If the code is fine, say so in one line.
5. Do not over-explain.
6. Do not include your thinking process.`

const reviewFormat = `Output format (Markdown, not wrapped in a code block):

## Summary
[One sentence on the overall quality, focused on what matters most]

## Issues Found
[Short bullet points, or "No significant issues found."]

## Suggestions
[Concrete suggestions for the issues above, or "The code looks good."]`

var builtinTemplates = []Template{
	{
		Name:        "concise",
		BuiltIn:     true,
		Description: "Quick review focused on the critical problems",
		Content: `You are a senior software engineer reviewing a colleague's change.
Focus on correctness, security, performance and readability.

` + reviewRules + `

` + reviewFormat + `

Code changes:
{code}`,
	},
	{
		Name:        "detailed",
		BuiltIn:     true,
		Description: "Thorough review covering quality, security, performance and best practices",
		Content: `Review the following code changes in detail. Look at code quality, security,
performance, error handling, naming, test coverage and adherence to best
practices. For every problem describe its impact and give a concrete
improvement. Do not comment on code that has no problem.

` + reviewFormat + `

Code changes:
{code}`,
	},
	{
		Name:        "security",
		BuiltIn:     true,
		Description: "Review focused on vulnerabilities and unsafe patterns",
		Content: `You are an application security engineer. Review the following code changes
for vulnerabilities: injection (SQL, command, template), XSS, CSRF, broken
authentication or authorization, secrets in code or logs, unsafe
deserialization, path traversal, missing input validation and insecure
defaults. Rate every finding as CRITICAL, HIGH, MEDIUM or LOW.

` + reviewRules + `

` + reviewFormat + `

Code changes:
{code}`,
	},
	{
		Name:        "performance",
		BuiltIn:     true,
		Description: "Review focused on efficiency and resource usage",
		Content: `You are a performance engineer. Review the following code changes for
algorithmic complexity, unnecessary allocations, N+1 queries, blocking I/O on
hot paths, missing caching or batching, unbounded growth and resource leaks.
Only report problems with a measurable impact.

` + reviewRules + `

` + reviewFormat + `

Code changes:
{code}`,
	},
}

// BuiltinTemplates returns the templates shipped with the binary, sorted by
// name.
func BuiltinTemplates() []Template {
	out := append([]Template(nil), builtinTemplates...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuiltinTemplate returns the built-in template called name.
func BuiltinTemplate(name string) (Template, bool) {
	for _, t := range builtinTemplates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// TemplateStore keeps user templates as <name>.md files in one directory.
type TemplateStore struct {
	dir string
}

// NewTemplateStore returns a store rooted at dir; a leading ~ is expanded.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	expanded, err := homedir.Expand(strings.TrimSpace(dir))
	if err != nil {
		return nil, fmt.Errorf("templates dir %q: %w", dir, err)
	}
	return &TemplateStore{dir: expanded}, nil
}

// Dir returns the directory templates are stored in.
func (s *TemplateStore) Dir() string {
	return s.dir
}

// Save validates and writes a user template. A template without the {code}
// placeholder is rejected.
func (s *TemplateStore) Save(name, content string) error {
	if !templateNamePattern.MatchString(name) {
		return fmt.Errorf("template name %q must start with a letter or digit and contain only letters, digits, '-' or '_'", name)
	}
	if err := core.ValidateTemplate(content); err != nil {
		return fmt.Errorf("template %q: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create templates dir: %w", err)
	}
	return os.WriteFile(s.path(name), []byte(content), 0o644)
}

// Load reads a user template.
func (s *TemplateStore) Load(name string) (Template, error) {
	if !templateNamePattern.MatchString(name) {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return Template{}, fmt.Errorf("read template %q: %w", name, err)
	}
	return Template{
		Name:        name,
		Description: "User template (" + s.path(name) + ")",
		Content:     string(b),
	}, nil
}

// Remove deletes a user template.
func (s *TemplateStore) Remove(name string) error {
	if !templateNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return err
}

// Resolve returns the user template called name if there is one, else the
// built-in one.
func (s *TemplateStore) Resolve(name string) (Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTemplate
	}
	t, err := s.Load(name)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTemplateNotFound) {
		return Template{}, err
	}
	if b, ok := BuiltinTemplate(name); ok {
		return b, nil
	}
	return Template{}, fmt.Errorf("%w: %s (available: %s)", ErrTemplateNotFound, name, strings.Join(s.names(), ", "))
}

// List returns built-in and user templates sorted by name. A user template
// shadows the built-in of the same name.
func (s *TemplateStore) List() ([]Template, error) {
	byName := map[string]Template{}
	for _, t := range builtinTemplates {
		byName[t.Name] = t
	}

	user, err := s.userNames()
	if err != nil {
		return nil, err
	}
	for _, name := range user {
		t, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		byName[name] = t
	}

	out := make([]Template, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *TemplateStore) names() []string {
	list, err := s.List()
	if err != nil {
		list = BuiltinTemplates()
	}
	names := make([]string, 0, len(list))
	for _, t := range list {
		names = append(names, t.Name)
	}
	return names
}

func (s *TemplateStore) userNames() ([]string, error) {
	info, err := os.Stat(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates dir %s is not a directory", s.dir)
	}

	var names []string
	err = filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == templateExt {
			name := strings.TrimSuffix(d.Name(), templateExt)
			if templateNamePattern.MatchString(name) {
				names = append(names, name)
			}
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

func (s *TemplateStore) path(name string) string {
	return filepath.Join(s.dir, name+templateExt)
}
