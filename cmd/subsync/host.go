package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"xui-sub-sync/internal/models"
	"xui-sub-sync/internal/storage"
	"xui-sub-sync/internal/validation"
)

func newHostCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Manage the host registry",
	}
	cmd.AddCommand(newHostAddCommand(opts))
	return cmd
}

func newHostAddCommand(opts *rootOptions) *cobra.Command {
	var (
		host     models.Host
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a host or replace the record with the same name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			host.Name = strings.TrimSpace(host.Name)
			host.URL = strings.TrimRight(strings.TrimSpace(host.URL), "/")
			host.Enabled = !disabled
			if err := validation.ValidateHost(host); err != nil {
				return err
			}

			store, err := storage.Open(cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UpsertHost(cmd.Context(), host); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "host %s saved (inbound %d, enabled=%t)\n", host.Name, host.InboundID, host.Enabled)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host.Name, "name", "", "unique host name")
	flags.StringVar(&host.URL, "url", "", "panel base URL, e.g. https://panel.example.com:2053")
	flags.StringVar(&host.Username, "username", "", "panel login")
	flags.StringVar(&host.Password, "password", "", "panel password")
	flags.IntVar(&host.InboundID, "inbound", 0, "inbound new keys are provisioned on")
	flags.BoolVar(&disabled, "disabled", false, "register the host without reconciling or serving it")
	for _, name := range []string{"name", "url", "username", "password", "inbound"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
