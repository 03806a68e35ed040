package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/vcgauction/core"
	"github.com/cloudx-io/vcgauction/profilefile"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// rootOptions are the solver settings shared by every subcommand
type rootOptions struct {
	maxBids int
	workers int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "vcgctl",
		Short: "Run and inspect VCG combinatorial auctions",
		Long: `vcgctl runs the VCG mechanism on auction profiles written as YAML,
builds requests for a sealed auctioneer and inspects recorded runs.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().IntVar(&opts.maxBids, "max-bids", 20, "Reject profiles with more bids than this")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", 1, "Goroutines per winner determination scan")

	rootCmd.AddCommand(
		newSolveCmd(opts),
		newWinnerCmd(opts),
		newRequestCmd(),
		newSubmitCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func loadProfile(path string) (*profilefile.File, error) {
	f, err := profilefile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return f, nil
}

func checkFormat(format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBundles(bundles []core.Bundle) string {
	if len(bundles) == 0 {
		return "-"
	}
	out := ""
	for i, b := range bundles {
		if i > 0 {
			out += " "
		}
		out += b.String()
	}
	return out
}
