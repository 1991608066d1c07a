/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/
package common

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// Exit codes of the CLI.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

var errClipboardUnsupported = errors.New("clipboard is not supported on this system")

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// LogError: to print an error message
// in case of "critic" at true, the program will stop on code 1
func LogError(
	message string,
	critic bool,
	help_menu bool,
	help_callback func() error,
) {
	fmt.Fprintf(stderr, "%s\n", message)

	if critic {
		if help_menu && help_callback != nil {
			_ = help_callback()
		}
		exit(ExitFailure)
	}
}

// LogInfo: for a simple logging info
func LogInfo(
	message string,
	callback func(),
) {
	fmt.Fprintf(stdout, "%s\n", message)

	// for a given callback
	if callback != nil {
		callback()
	}
}

// Exit stops the program with code.
func Exit(code int) {
	exit(code)
}

// GetArgByKey get an argument value based on a key input + a strict mode for required params
func GetArgByKey(
	key string,
	cmdFlags *pflag.FlagSet,
	strictMode bool,
	help func() error,
) string {
	value, err := cmdFlags.GetString(key)
	if strictMode && err != nil {
		msg := fmt.Sprintf("[x] %v, is not set and is required for your command.", key)
		LogError(msg, true, true, help)
	}
	return value
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitPair splits "old,new" into its two halves.
func SplitPair(value string) (string, string, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("expected <old,new>, got %q", value)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
