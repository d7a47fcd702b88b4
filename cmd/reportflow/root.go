package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/reportflow/config"
)

type rootOptions struct {
	service    string
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "reportflow",
		Short:         "Run asynchronous report filter chains",
		Long:          "reportflow composes redaction, encoding, encryption and delivery filters into chains defined in YAML and runs report sets through them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.service, "service", "reportflow", "service name used to find <service>.yaml")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file path")

	cmd.AddCommand(newRunCmd(opts), newValidateCmd(opts), newVersionCmd())
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	var opts []config.LoaderOption
	if o.configFile != "" {
		opts = append(opts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		opts = append(opts, config.WithEnvFile(o.envFile))
	}
	return config.LoadConfig(o.service, opts...)
}
