/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>

*/

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sanix-darker/aireview/internal/common"
	"github.com/sanix-darker/aireview/internal/config"
	"github.com/sanix-darker/aireview/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	conf    = config.NewDefaultConfig()
	logger  = zap.NewNop()
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aireview",
	Short: "An AI code reviewer in your terminal.",
	Long: `Get code reviews from a local Ollama model or from OpenRouter for any kind
of changes: two files, a commit, or your uncommitted work.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// exitCodeError ends the process with a specific code once cobra returns.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err == nil {
		return common.ExitOK
	}

	var ec exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	fmt.Fprintf(conf.ErrWriter, "Error: %v\n", err)
	return common.ExitFailure
}

// setup loads the configuration and builds the logger before any command
// runs.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	loaded.Printers = conf.Printers
	loaded.InReader, loaded.OutWriter, loaded.ErrWriter = conf.InReader, conf.OutWriter, conf.ErrWriter

	flags := cmd.Flags()
	for key, name := range map[string]string{
		config.KeyDebug:    "debug",
		config.KeyLanguage: "language",
	} {
		if f := flags.Lookup(name); f != nil {
			if err := loaded.Viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	loaded.Refresh()
	conf = loaded

	l, err := logging.New(conf.Debug)
	if err != nil {
		return err
	}
	logger = l
	logger.Debug("configuration loaded",
		zap.String("config_file", conf.ConfigFilePath),
		zap.String("language", conf.Language),
	)
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.config/aireview/config.yml)")
	flags.Bool("debug", false, "print debug logs to stderr")
	flags.String("language", "", "language of the review (en, zh, ...)")
	addModelFlags(flags)

	rootCmd.AddCommand(
		NewDiffCmd(),
		NewCommitCmd(),
		NewChangesCmd(),
	)
}
