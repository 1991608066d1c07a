package cmd

import (
	"github.com/sanix-darker/aireview/internal/common"
	"github.com/sanix-darker/aireview/internal/vcs"
	"github.com/spf13/cobra"
)

// NewDiffCmd: add a new diff command
func NewDiffCmd() *cobra.Command {
	var opts reviewOptions

	// diffCmd represents the diffCmd for the command
	diffCmd := &cobra.Command{
		Use:   "diff <old,new> | diff <old> <new>",
		Short: "review the changes between two files or directories (not git related).",
		Example: "aireview diff code_ok.py,code_bad.py\n" +
			"aireview diff old_src/ new_src/ --per-file -j 4",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPath, newPath, err := diffPaths(args)
			if err != nil {
				return err
			}
			src, err := vcs.New("files", vcs.Options{OldPath: oldPath, NewPath: newPath})
			if err != nil {
				return err
			}
			return runReview(cmd, opts, src)
		},
	}
	addReviewFlags(diffCmd, &opts)

	return diffCmd
}

func diffPaths(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	return common.SplitPair(args[0])
}
