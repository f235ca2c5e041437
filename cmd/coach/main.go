package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/speaking-coach/internal/config"
)

const version = "0.4.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRoot().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "coach",
		Short:         "Conversational speaking-exercise engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "coach.yaml", "config file (YAML)")

	load := func() (*config.Config, error) {
		return config.LoadOrDefault(cfgPath)
	}
	root.AddCommand(
		serveCmd(load),
		runCmd(load),
		modulesCmd(load),
		oracleServeCmd(load),
		initConfigCmd(&cfgPath),
	)
	return root
}

func initConfigCmd(cfgPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*cfgPath); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", *cfgPath)
			}
			if err := config.Default().Save(*cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", *cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
