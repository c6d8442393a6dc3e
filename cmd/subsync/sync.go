package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/reconcile"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one forced reconciliation pass over every registered host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			e, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			pass, err := e.scheduler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			printPass(cmd.OutOrStdout(), pass)

			if failed := pass.FailedHosts(); len(failed) > 0 {
				return fmt.Errorf("%d hosts failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

// printPass writes one line per host followed by the pass total
func printPass(w io.Writer, pass *reconcile.Pass) {
	names := make([]string, 0, len(pass.Results))
	for name := range pass.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result := pass.Results[name]
		line := fmt.Sprintf("%-20s %-12s inspected=%d fixed=%d failed=%d skipped=%d",
			name, result.Status(), result.Inspected, result.Fixed, result.Failed, result.SkippedInbounds)
		if result.Err != nil {
			line += fmt.Sprintf(" kind=%s error=%q", apperrors.Kind(result.Err), result.Err.Error())
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "pass %s: %s clients fixed on %d hosts in %s\n",
		pass.ID, humanize.Comma(int64(pass.Fixed())), len(pass.Results), pass.Duration.Round(time.Millisecond))
}
