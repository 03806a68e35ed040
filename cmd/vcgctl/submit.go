package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/sealing"
	"github.com/cloudx-io/vcgauction/validation"
)

// roundTrip sends one request over a fresh TCP connection. The auctioneer
// reads until EOF, so the write side is closed before reading the reply.
func roundTrip(addr string, timeout time.Duration, request any, response any) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial auctioneer: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.CloseWrite(); err != nil {
			return fmt.Errorf("close write: %w", err)
		}
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var base struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if base.Type == auctionapi.TypeError {
		return fmt.Errorf("auctioneer error: %s", base.Message)
	}
	return json.Unmarshal(raw, response)
}

func newSubmitCmd() *cobra.Command {
	var (
		addr      string
		timeout   time.Duration
		seal      bool
		verifyKey bool
		pcrsPath  string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "submit <profile.yaml>",
		Short: "Send a profile to a TCP auctioneer and print its attested outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			f, err := loadProfile(args[0])
			if err != nil {
				return err
			}
			req := f.Request()

			if seal {
				var keyResponse auctionapi.KeyResponse
				if err := roundTrip(addr, timeout, map[string]string{"type": auctionapi.TypeKeyRequest}, &keyResponse); err != nil {
					return fmt.Errorf("key request: %w", err)
				}

				if verifyKey {
					verifier, err := validation.NewVerifier(pcrsPath)
					if err != nil {
						return err
					}
					result, err := verifier.ValidateKeyAttestation(keyResponse.AttestationCOSEBase64, keyResponse.PublicKey)
					if err != nil {
						return fmt.Errorf("key attestation: %w", err)
					}
					if !result.IsValid() {
						return fmt.Errorf("key attestation invalid: %s", strings.Join(result.ValidationDetails, "; "))
					}
					log.Printf("INFO: auctioneer key attestation verified")
				}

				publicKey, err := sealing.ParsePublicKeyPEM([]byte(keyResponse.PublicKey))
				if err != nil {
					return err
				}
				if err := sealRequest(&req, publicKey, sealing.HashAlgorithmSHA256); err != nil {
					return err
				}
			}

			var resp auctionapi.VCGResponse
			if err := roundTrip(addr, timeout, req, &resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("auction rejected: %s", resp.Message)
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			printResponse(cmd.OutOrStdout(), &resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Auctioneer TCP address")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "Per-request timeout")
	cmd.Flags().BoolVar(&seal, "seal", false, "Fetch the auctioneer key and seal every bid value")
	cmd.Flags().BoolVar(&verifyKey, "verify-key", false, "Validate the key attestation before sealing")
	cmd.Flags().StringVar(&pcrsPath, "pcrs", "", "PCR configuration for --verify-key (default: embedded)")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	return cmd
}

func printResponse(w io.Writer, resp *auctionapi.VCGResponse) {
	fmt.Fprintf(w, "Run:      %s\n", resp.RunID)
	fmt.Fprintf(w, "Welfare:  %.4f\n", resp.Welfare)
	fmt.Fprintf(w, "Time:     %dms\n", resp.ProcessingTime)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-16s %-24s %10s %10s\n", "BIDDER", "BUNDLES", "VALUE", "PAYMENT")
	for _, a := range resp.Awards {
		fmt.Fprintf(w, "%-16s %-24s %10.4f %10.4f\n", a.Bidder, formatLabels(a.Bundles), a.Value, a.Payment)
	}
	for _, e := range resp.ExcludedBids {
		fmt.Fprintf(w, "excluded: %s %v (%s)\n", e.Bidder, e.Items, e.Reason)
	}
	for _, e := range resp.ReserveRejectedBids {
		fmt.Fprintf(w, "below reserve: %s %v\n", e.Bidder, e.Items)
	}
}

func formatLabels(bundles [][]string) string {
	if len(bundles) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(bundles))
	for _, b := range bundles {
		parts = append(parts, "{"+strings.Join(b, ",")+"}")
	}
	return strings.Join(parts, " ")
}
