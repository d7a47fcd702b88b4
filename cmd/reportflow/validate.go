package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/reportflow/bootstrap"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [chain...]",
		Short: "Validate the configuration and build chains",
		Long:  "Loads and validates the configuration, then builds the root chain and every named chain against the registered filters. Sinks are configured but not contacted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cfg, bootstrap.WithSummaryWriter(io.Discard))
			if err != nil {
				return err
			}
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ config %s (%s)\n", cfg.Name, cfg.Environment)
			fmt.Fprintf(w, "✓ chain %s\n", cfg.Chains.Root)
			for _, name := range args {
				if _, err := app.Load(name); err != nil {
					return fmt.Errorf("chain %s: %w", name, err)
				}
				fmt.Fprintf(w, "✓ chain %s\n", name)
			}
			return nil
		},
	}
}
