package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"xui-sub-sync/internal/config"
)

type rootOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "subsync",
		Short:         "subsync keeps 3x-ui client flows consistent and serves subscription feeds",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # serve feeds and reconcile every 5 minutes
  DATABASE_PATH=/var/lib/shop/users.db subsync serve

  # one forced reconciliation pass
  subsync sync --config /etc/subsync.yaml

  # register a panel
  subsync host add --name de-1 --url https://de.example.com:2053 --username admin --password secret --inbound 1`,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML, TOML or JSON config file")

	serve := newServeCommand(opts)
	cmd.AddCommand(serve, newSyncCommand(opts), newHostCommand(opts))

	// the bare binary behaves like serve
	cmd.RunE = serve.RunE

	return cmd
}

// load reads the configuration and builds the logger from it
func (o *rootOptions) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}
