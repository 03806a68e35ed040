package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/vcgauction/runindex"
)

func newRunsCmd() *cobra.Command {
	var (
		indexPath string
		limit     int
		runID     string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, or the awards of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if indexPath == "" {
				return fmt.Errorf("--index is required")
			}
			idx, err := runindex.Open(indexPath)
			if err != nil {
				return fmt.Errorf("open run index: %w", err)
			}
			defer idx.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			w := cmd.OutOrStdout()

			if runID != "" {
				awards, err := idx.Awards(ctx, runID)
				if err != nil {
					return err
				}
				if len(awards) == 0 {
					return fmt.Errorf("run %s not found", runID)
				}
				if format == formatJSON {
					return writeJSON(w, awards)
				}
				fmt.Fprintf(w, "%-16s %-24s %10s %10s\n", "BIDDER", "BUNDLES", "VALUE", "PAYMENT")
				for _, a := range awards {
					fmt.Fprintf(w, "%-16s %-24s %10.4f %10.4f\n", a.Bidder, formatLabels(a.Bundles), a.Value, a.Payment)
				}
				return nil
			}

			runs, err := idx.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(w, runs)
			}
			fmt.Fprintf(w, "%-36s %-20s %-20s %5s %10s %10s\n", "RUN", "AUCTION", "RECORDED", "BIDS", "WELFARE", "PAYMENTS")
			for _, r := range runs {
				fmt.Fprintf(w, "%-36s %-20s %-20s %5d %10.4f %10.4f\n",
					r.RunID, r.AuctionID, r.RecordedAt.UTC().Format("2006-01-02 15:04:05"), r.Bids, r.Welfare, r.Payments)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&indexPath, "index", "", "SQLite run index")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the awards of this run")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	return cmd
}
