package main

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/sealing"
)

func newRequestCmd() *cobra.Command {
	var (
		sealKeyPath string
		hashAlg     string
	)

	cmd := &cobra.Command{
		Use:   "request <profile.yaml>",
		Short: "Print the auctioneer request for a profile, optionally with sealed values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadProfile(args[0])
			if err != nil {
				return err
			}
			req := f.Request()

			if sealKeyPath != "" {
				pemData, err := os.ReadFile(sealKeyPath)
				if err != nil {
					return fmt.Errorf("read public key: %w", err)
				}
				publicKey, err := sealing.ParsePublicKeyPEM(pemData)
				if err != nil {
					return err
				}
				if err := sealRequest(&req, publicKey, sealing.HashAlgorithm(hashAlg)); err != nil {
					return err
				}
			}

			return writeJSON(cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVar(&sealKeyPath, "seal", "", "Seal every bid value with this auctioneer public key (PEM)")
	cmd.Flags().StringVar(&hashAlg, "hash", string(sealing.HashAlgorithmSHA256), "RSA-OAEP hash for sealing: SHA-256 or SHA-1")
	return cmd
}

// sealRequest replaces every plain value in req with a sealed one
func sealRequest(req *auctionapi.VCGRequest, publicKey *rsa.PublicKey, hashAlg sealing.HashAlgorithm) error {
	for i := range req.Bidders {
		valuation := &req.Bidders[i]
		for j := range valuation.Bids {
			bid := &valuation.Bids[j]
			sealed, err := sealing.SealBidValue(bid.Value, publicKey, hashAlg)
			if err != nil {
				return fmt.Errorf("seal bid of %s for %s: %w", valuation.Bidder, bid.Bundle(), err)
			}
			bid.EncryptedValue = sealed
			bid.Value = 0
		}
	}
	return nil
}
