package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/sanix-darker/aireview/internal/config"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/spf13/cobra"
)

func init() {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List and pick the review model",
	}

	modelsCmd.AddCommand(newModelsListCmd())
	modelsCmd.AddCommand(newModelsSelectCmd())
	rootCmd.AddCommand(modelsCmd)
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the models the provider serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, names, err := listModels(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(conf.OutWriter, "Models on %s (%s):\n", mc.Endpoint, mc.Provider)
			for _, name := range names {
				marker := " "
				if name == mc.ModelName {
					marker = "*"
				}
				fmt.Fprintf(conf.OutWriter, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func newModelsSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Pick the review model and save it in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, names, err := listModels(cmd)
			if err != nil {
				return err
			}
			_, choice, err := conf.Printers.Select("Select the review model", names, mc.ModelName)
			if err != nil {
				return err
			}
			path, err := saveModel(conf, mc.Provider, choice)
			if err != nil {
				return err
			}
			fmt.Fprintf(conf.OutWriter, "Model set to %s in %s\n", choice, path)
			return nil
		},
	}
}

func listModels(cmd *cobra.Command) (provider.ModelConfig, []string, error) {
	mc, err := resolveModelConfig(&conf, cmd.Flags())
	if err != nil {
		return mc, nil, err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return mc, provider.NewDiscovery(logger).ListModels(ctx, mc), nil
}

// saveModel writes the model of kind into the config file and returns the
// file path.
func saveModel(c config.Config, kind provider.Kind, model string) (string, error) {
	store, err := config.OpenStore(c.ConfigFilePath)
	if err != nil {
		return "", err
	}
	store.Set(provider.ProviderKey(kind, "model"), model)
	if err := store.Save(); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	return store.Path(), nil
}
