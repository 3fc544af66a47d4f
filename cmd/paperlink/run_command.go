package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"paperlink/internal/logging"
	"paperlink/internal/pipeline"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		dryRun     bool
		workers    int
		sourceTag  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile dump records against the knowledge graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := pipeline.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			summary, err := p.Run(ctx, pipeline.RunOptions{
				SourceTag: sourceTag,
				DryRun:    dryRun,
				Workers:   workers,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().IntVar(&workers, "workers", 0, "Override the configured worker count")
	cmd.Flags().StringVar(&sourceTag, "source", "", "Restrict the run to one configured source")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the run summary as JSON")
	return cmd
}

func renderSummary(summary *pipeline.Summary) string {
	headers := []string{"Metric", "Count"}
	aligns := []columnAlignment{alignLeft, alignRight}
	rows := [][]string{
		{"Dump entries", strconv.Itoa(summary.Entries)},
		{"Malformed entries", strconv.Itoa(summary.Malformed)},
		{"Not approved", strconv.Itoa(summary.NotApproved)},
		{"Without citations", strconv.Itoa(summary.WithoutCitations)},
		{"Candidates", strconv.Itoa(summary.Candidates)},
		{"New", strconv.Itoa(summary.New)},
		{"Changed", strconv.Itoa(summary.Changed)},
		{"Retried", strconv.Itoa(summary.Retried)},
		{"Unchanged", strconv.Itoa(summary.Unchanged)},
		{"Duplicates", strconv.Itoa(summary.Duplicates)},
		{"Matched (exact)", strconv.Itoa(summary.MatchedExact)},
		{"Matched (heuristic)", strconv.Itoa(summary.MatchedHeuristic)},
		{"Unmatched", strconv.Itoa(summary.Unmatched)},
		{"Ambiguous", strconv.Itoa(summary.Ambiguous)},
		{"Lookup failures", strconv.Itoa(summary.LookupFailed)},
		{"Applied", strconv.Itoa(summary.Applied)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Conflicts", strconv.Itoa(summary.Conflicts)},
	}

	title := fmt.Sprintf("Run %s", summary.RunID)
	if summary.DryRun {
		title += " (dry run)"
	}
	return renderTable(title, headers, rows, aligns)
}
