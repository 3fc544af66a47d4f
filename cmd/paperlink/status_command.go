package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"paperlink/internal/linkstate"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show link-state statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := linkstate.Open(cfg.StateDBPath())
			if err != nil {
				if errors.Is(err, linkstate.ErrLocked) {
					return fmt.Errorf("state database is locked; a run is in progress")
				}
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Papers tracked", statusInfo, strconv.Itoa(stats.Total), colorize))
			fmt.Fprintln(out, renderStatusLine("Matched", statusOK, strconv.Itoa(stats.Matched), colorize))
			fmt.Fprintln(out, renderStatusLine("Applied", statusOK, strconv.Itoa(stats.Applied), colorize))
			fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, strconv.Itoa(stats.Pending), colorize))
			fmt.Fprintln(out, renderStatusLine("Skipped", statusInfo, strconv.Itoa(stats.Skipped), colorize))
			failedKind := statusOK
			if stats.Failed > 0 {
				failedKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Failed", failedKind, strconv.Itoa(stats.Failed), colorize))
			conflictKind := statusOK
			if stats.Conflicts > 0 {
				conflictKind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Conflicts", conflictKind, strconv.Itoa(stats.Conflicts), colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit statistics as JSON")
	return cmd
}
