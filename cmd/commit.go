package cmd

import (
	"github.com/sanix-darker/aireview/internal/common"
	"github.com/sanix-darker/aireview/internal/vcs"
	"github.com/spf13/cobra"
)

// NewCommitCmd for a given repo and commit hash, will provide a review from it
func NewCommitCmd() *cobra.Command {
	var opts reviewOptions

	commitCmd := &cobra.Command{
		Use:   "commit [revision] [--repo] [-p --path]...",
		Short: "review what a commit changed (HEAD by default)",
		Example: "aireview commit\n" +
			"aireview commit 44rtff55g --repo /path/to/git/project\n" +
			"aireview commit HEAD~2 -p app/main.py,tests/ --template security",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revision := "HEAD"
			if len(args) == 1 {
				revision = args[0]
			}
			src, err := vcs.New("commit", gitOptions(cmd, revision))
			if err != nil {
				return err
			}
			return runReview(cmd, opts, src)
		},
	}
	addGitFlags(commitCmd)
	addReviewFlags(commitCmd, &opts)

	return commitCmd
}

// NewChangesCmd reviews the uncommitted changes of a repository.
func NewChangesCmd() *cobra.Command {
	var opts reviewOptions

	changesCmd := &cobra.Command{
		Use:     "changes [--repo] [-p --path]...",
		Short:   "review your uncommitted changes, staged or not, against HEAD",
		Example: "aireview changes\naireview changes -p internal/ --per-file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := vcs.New("worktree", gitOptions(cmd, ""))
			if err != nil {
				return err
			}
			return runReview(cmd, opts, src)
		},
	}
	addGitFlags(changesCmd)
	addReviewFlags(changesCmd, &opts)

	return changesCmd
}

func gitOptions(cmd *cobra.Command, revision string) vcs.Options {
	repo := common.GetArgByKey("repo", cmd.Flags(), false, cmd.Help)
	paths := common.GetArgByKey("path", cmd.Flags(), false, cmd.Help)
	return vcs.Options{
		RepoPath: repo,
		Revision: revision,
		Paths:    common.SplitList(paths),
	}
}
