package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sanix-darker/aireview/internal/cmd/version"
	"github.com/sanix-darker/aireview/internal/core"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Test the connection to the configured provider and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := resolveModelConfig(&conf, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			exec := provider.NewExecutor(
				provider.WithLogger(logger),
				provider.WithUserAgent(version.UserAgent()),
			)
			resp, err := exec.Ping(ctx, mc)
			if err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}

			fmt.Fprintf(conf.OutWriter, "✅ Connected to %s (model %s) in %s\n",
				mc.FullURL(), resp.Model, resp.Duration.Round(time.Millisecond))
			if reply := strings.TrimSpace(core.StripReasoning(core.ExtractContent(resp.Body))); reply != "" {
				fmt.Fprintf(conf.OutWriter, "Reply: %s\n", reply)
			}
			return nil
		},
	})
}
