package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/reportflow/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "reportflow %s (%s)\n", info, info.GoVersion)
		},
	}
}
