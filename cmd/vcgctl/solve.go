package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/core"
	"github.com/cloudx-io/vcgauction/journal"
	"github.com/cloudx-io/vcgauction/runindex"
)

// solveOutput is the JSON form of a local mechanism run
type solveOutput struct {
	RunID           string                   `json:"run_id"`
	AuctionID       string                   `json:"auction_id"`
	TieBreak        string                   `json:"tie_break"`
	Welfare         float64                  `json:"welfare"`
	Allocation      core.Allocation          `json:"allocation"`
	Awards          []auctionapi.Award       `json:"awards"`
	ReserveRejected []auctionapi.ExcludedBid `json:"reserve_rejected,omitempty"`
}

func newSolveCmd(opts *rootOptions) *cobra.Command {
	var (
		format     string
		journalDir string
		indexPath  string
	)

	cmd := &cobra.Command{
		Use:   "solve <profile.yaml>",
		Short: "Run the full mechanism: adjustments, reserves, allocation and VCG payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			f, err := loadProfile(args[0])
			if err != nil {
				return err
			}
			vcgOpts, err := f.Options(opts.maxBids, opts.workers)
			if err != nil {
				return err
			}
			policy, err := core.ParseTieBreakPolicy(f.TieBreak)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			start := time.Now()
			result, err := core.RunMechanism(ctx, f.Bids(), f.Bidders(), f.AdjustmentFactors, f.Reserves(), vcgOpts)
			if err != nil {
				return fmt.Errorf("mechanism failed: %w", err)
			}

			out := solveOutput{
				RunID:           uuid.NewString(),
				AuctionID:       f.AuctionID,
				TieBreak:        policy.String(),
				Welfare:         result.VCG.Welfare,
				Allocation:      result.VCG.Allocation,
				Awards:          auctionapi.AwardsFromResult(result.VCG),
				ReserveRejected: auctionapi.RejectedToExcluded(result.ReserveRejected),
			}
			log.Printf("INFO: auction %s solved in %s: welfare=%.4f winners=%v", f.AuctionID, time.Since(start), out.Welfare, result.VCG.Allocation.Winners())

			if journalDir != "" {
				if err := appendJournal(journalDir, out, len(f.Bids())); err != nil {
					return err
				}
			}
			if indexPath != "" {
				if err := recordRun(ctx, indexPath, out, len(f.Bids()), result.VCG.TotalPayments()); err != nil {
					return err
				}
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printSolve(cmd.OutOrStdout(), out, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	cmd.Flags().StringVar(&journalDir, "journal", "", "Append the outcome to a compressed journal in this directory")
	cmd.Flags().StringVar(&indexPath, "index", "", "Record the run in this SQLite index")
	return cmd
}

func appendJournal(dir string, out solveOutput, bids int) error {
	w := journal.NewWriter(dir)
	err := w.Write(journal.Entry{
		RunID:           out.RunID,
		AuctionID:       out.AuctionID,
		TieBreak:        out.TieBreak,
		Bids:            bids,
		Welfare:         out.Welfare,
		Awards:          out.Awards,
		ReserveRejected: out.ReserveRejected,
	})
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func recordRun(ctx context.Context, path string, out solveOutput, bids int, payments float64) error {
	idx, err := runindex.Open(path)
	if err != nil {
		return fmt.Errorf("open run index: %w", err)
	}
	defer idx.Close()

	return idx.Record(ctx, runindex.Run{
		RunID:     out.RunID,
		AuctionID: out.AuctionID,
		TieBreak:  out.TieBreak,
		Bids:      bids,
		Welfare:   out.Welfare,
		Payments:  payments,
		Awards:    out.Awards,
	})
}

func printSolve(w io.Writer, out solveOutput, result *core.MechanismResult) {
	fmt.Fprintf(w, "Auction:  %s\n", out.AuctionID)
	fmt.Fprintf(w, "Run:      %s\n", out.RunID)
	fmt.Fprintf(w, "Welfare:  %.4f\n", out.Welfare)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-16s %-24s %10s %10s %10s\n", "BIDDER", "BUNDLES", "VALUE", "PAYMENT", "WITHOUT")
	for _, o := range result.VCG.Outcomes {
		fmt.Fprintf(w, "%-16s %-24s %10.4f %10.4f %10.4f\n", o.Bidder, formatBundles(o.Bundles), o.Value, o.Payment, o.WelfareWithout)
	}
	if len(result.ReserveRejected) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Below reserve:")
		for _, r := range result.ReserveRejected {
			fmt.Fprintf(w, "  %s\n", r.Bid)
		}
	}
}

func newWinnerCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "winner <profile.yaml>",
		Short: "Winner determination only: the welfare-maximising allocation, no payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			f, err := loadProfile(args[0])
			if err != nil {
				return err
			}
			vcgOpts, err := f.Options(opts.maxBids, opts.workers)
			if err != nil {
				return err
			}

			prepared, err := core.PrepareBids(f.Bids(), f.Bidders(), f.AdjustmentFactors, f.Reserves())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			allocation, err := vcgOpts.Solver.Solve(ctx, prepared.Profile)
			if err != nil {
				return fmt.Errorf("winner determination failed: %w", err)
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), allocation)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Welfare: %.4f\n", allocation.Value)
			for _, bid := range allocation.Bids {
				fmt.Fprintf(w, "  %s\n", bid)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	return cmd
}
