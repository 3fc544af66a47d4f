package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paperlink/internal/linkstate"
)

func newConflictsCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List papers whose resolved item disagrees with recorded state",
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

			conflicts, err := store.Conflicts(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), conflicts)
			}

			out := cmd.OutOrStdout()
			if len(conflicts) == 0 {
				fmt.Fprintln(out, "No conflicts recorded")
				return nil
			}

			headers := []string{"Paper", "Item", "Detail", "Updated"}
			rows := make([][]string, 0, len(conflicts))
			for _, state := range conflicts {
				rows = append(rows, []string{
					state.PaperID,
					state.KGItemID,
					state.ConflictDetail,
					state.UpdatedAt.Local().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(out, renderTable("", headers, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit conflicts as JSON")
	return cmd
}
