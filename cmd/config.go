package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sanix-darker/aireview/internal/common"
	"github.com/sanix-darker/aireview/internal/config"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/sanix-darker/aireview/internal/review"
	"github.com/spf13/cobra"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage aireview configuration",
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigEffectiveCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	rootCmd.AddCommand(configCmd)
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default config file at ~/.config/aireview/config.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := config.WriteSample(conf.ConfigFilePath, force)
			if errors.Is(err, config.ErrConfigExists) {
				fmt.Fprintf(conf.OutWriter, "Config file already exists at %s (use --force to replace it)\n", conf.ConfigFilePath)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(conf.OutWriter, "Config file created at %s\n", conf.ConfigFilePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing config file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(conf.ConfigFilePath)
			if err != nil {
				fmt.Fprintf(conf.OutWriter, "No config file found at %s\n", conf.ConfigFilePath)
				fmt.Fprintln(conf.OutWriter, "\nDefault configuration:")
				fmt.Fprintln(conf.OutWriter, provider.SampleConfigYAML())
				return
			}

			fmt.Fprintf(conf.OutWriter, "# Config file: %s\n", conf.ConfigFilePath)
			fmt.Fprintln(conf.OutWriter, string(data))
		},
	}
}

func newConfigEffectiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "effective",
		Short: "Print effective config after env/flag overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := resolveModelConfig(&conf, cmd.Flags())
			if err != nil {
				return err
			}
			out, err := conf.EffectiveYAML(mc)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			fmt.Fprint(conf.OutWriter, string(out))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config values and required provider fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			errs := validateEffectiveConfig(cmd)
			if len(errs) > 0 {
				fmt.Fprintln(conf.OutWriter, "Configuration is invalid:")
				for _, e := range errs {
					fmt.Fprintf(conf.OutWriter, "- %s\n", e)
				}
				return exitCodeError{code: common.ExitFailure}
			}
			fmt.Fprintln(conf.OutWriter, "Configuration is valid.")
			return nil
		},
	}
}

// validateEffectiveConfig lists every problem of the configuration once the
// flags are applied.
func validateEffectiveConfig(cmd *cobra.Command) []string {
	var errs []string
	mc, err := resolveModelConfig(&conf, cmd.Flags())
	if err != nil {
		return append(errs, err.Error())
	}
	errs = append(errs, mc.Problems()...)

	for _, p := range conf.Problems() {
		// model problems were already reported from the flag-aware config
		if !contains(errs, p) {
			errs = append(errs, p)
		}
	}

	store, err := review.NewTemplateStore(conf.TemplatesDir)
	if err != nil {
		return append(errs, err.Error())
	}
	if _, err := store.Resolve(conf.Template); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", config.KeyTemplate, err))
	}
	return errs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
