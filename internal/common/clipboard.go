package common

import (
	"github.com/atotto/clipboard"
)

func SetClipboardValue(value string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(value)
}
