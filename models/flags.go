/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/
package models

import (
	"github.com/spf13/pflag"
)

type FlagStruct struct {
	Label        string
	Short        string
	Description  string
	DefaultValue string
}

// Register adds the flag as a string flag to fs.
func (f FlagStruct) Register(fs *pflag.FlagSet) {
	if fs.Lookup(f.Label) != nil {
		return
	}
	fs.StringP(f.Label, f.Short, f.DefaultValue, f.Description)
}
