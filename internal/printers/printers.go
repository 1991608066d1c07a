package printers

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

const selectItemsSize = 10

var defaultPrinters = Printers{}

type IPrinters interface {
	Confirm(message string) bool
	Select(label string, items []string, current string) (int, string, error)
}

type Printers struct{}

// NewPrinters returns new printers struct
func NewPrinters() *Printers {
	return &Printers{}
}

func (p Printers) Confirm(message string) bool {
	prompt := promptui.Prompt{
		Label:    message + " Press (y/n)",
		Validate: validateYesNo,
	}

	result, err := prompt.Run()
	if err != nil {
		return false
	}
	return isYes(result)
}

func validateYesNo(input string) error {
	input = strings.ToLower(strings.TrimSpace(input))
	if input != "y" && input != "n" {
		return fmt.Errorf("wrong input %s, was expecting `y` or `n`", input)
	}
	return nil
}

func isYes(input string) bool {
	return strings.ToLower(strings.TrimSpace(input)) == "y"
}

// Confirm prompt a confirmation message
//
// Return true if the user entered Y/y and false if entered n/N
func Confirm(message string) bool {
	return defaultPrinters.Confirm(message)
}

// Select prompts a searchable list and returns the chosen index and item.
// The cursor starts on current when it is one of the items.
func Select(label string, items []string, current string) (int, string, error) {
	return defaultPrinters.Select(label, items, current)
}

func (p Printers) Select(label string, items []string, current string) (int, string, error) {
	if len(items) == 0 {
		return -1, "", fmt.Errorf("nothing to select")
	}

	prompt := promptui.Select{
		Label:             label,
		Items:             items,
		Size:              selectItemsSize,
		CursorPos:         indexOf(items, current),
		StartInSearchMode: len(items) > selectItemsSize,
		Searcher:          searcher(items),
		Templates:         getTemplates(current),
	}

	i, result, err := prompt.Run()
	if err != nil {
		return i, "", fmt.Errorf("prompt failed %v", err)
	}
	return i, result, nil
}

// searcher matches every whitespace separated word of the input,
// case-insensitively.
func searcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		item := strings.ToLower(items[index])
		for _, word := range strings.Fields(strings.ToLower(input)) {
			if !strings.Contains(item, word) {
				return false
			}
		}
		return true
	}
}

func indexOf(items []string, s string) int {
	for i, item := range items {
		if item == s {
			return i
		}
	}
	return 0
}

func getTemplates(current string) *promptui.SelectTemplates {
	trimText := func(s string) string {
		if len(s) > 60 {
			return s[:60] + "..."
		}
		return s
	}

	funcMap := promptui.FuncMap
	funcMap["inline"] = func(s string) string {
		return strings.ReplaceAll(trimText(s), "\n", " ")
	}
	funcMap["current"] = func(s string) bool { return s == current }

	//if you find a hard time understand it check out golang templating format documentation
	//here https://golang.org/pkg/text/template
	return &promptui.SelectTemplates{
		Label:    "{{ . | bold }}",
		Active:   "* {{ inline . | bold | cyan }}{{ if current . }} {{ `(current)` | faint }}{{ end }}",
		Inactive: "  {{ inline . }}{{ if current . }} {{ `(current)` | faint }}{{ end }}",
		Selected: " {{ `✓` | green }} {{ inline . | bold }}",
		FuncMap:  funcMap,
	}
}
