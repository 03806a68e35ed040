package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/core"
	"github.com/cloudx-io/vcgauction/sealing"
)

// Exclusion reasons reported for bids that never reach the mechanism
const (
	reasonDecryptionFailed = "decryption_failed"
	reasonInvalidPayload   = "invalid_payload_format"
	reasonInvalidValue     = "invalid_value"
)

// ProcessSettings carries the solver configuration for mechanism runs
type ProcessSettings struct {
	TieBreak      core.TieBreakPolicy
	MaxBids       int
	SolverWorkers int
}

func failedResponse(startTime time.Time, format string, args ...any) auctionapi.VCGResponse {
	return auctionapi.VCGResponse{
		Type:           auctionapi.TypeVCGResponse,
		Success:        false,
		Message:        fmt.Sprintf(format, args...),
		ProcessingTime: time.Since(startTime).Milliseconds(),
	}
}

// ProcessVCG runs the mechanism on a request and attests the outcome.
// Failures are reported in the response rather than as errors.
func ProcessVCG(ctx context.Context, attester Attester, req auctionapi.VCGRequest, keyManager *KeyManager, settings ProcessSettings) auctionapi.VCGResponse {
	startTime := time.Now()
	log.Printf("INFO: Processing VCG auction %s with %d bidders", req.AuctionID, len(req.Bidders))

	// Step 1: Reject invalid adjustment factors and reserves up front
	if err := core.ValidateMarketParams(req.AdjustmentFactors, req.Reserves()); err != nil {
		return failedResponse(startTime, "Invalid market parameters: %v", err)
	}

	policy := settings.TieBreak
	if req.TieBreak != "" {
		parsed, err := core.ParseTieBreakPolicy(req.TieBreak)
		if err != nil {
			return failedResponse(startTime, "Invalid tie break: %v", err)
		}
		policy = parsed
	}

	// Step 2: Open sealed values; failures exclude only the affected bid
	bids, excluded := openBids(req, keyManager)
	if len(excluded) > 0 {
		log.Printf("INFO: %d bids excluded before the mechanism", len(excluded))
	}

	// Step 3: Adjustment, reserves, winner determination and payments
	opts := core.VCGOptions{
		Solver: core.ExhaustiveSolver{
			TieBreak: policy,
			MaxBids:  settings.MaxBids,
			Workers:  settings.SolverWorkers,
		},
	}
	result, err := core.RunMechanism(ctx, bids, req.BidderIDs(), req.AdjustmentFactors, req.Reserves(), opts)
	if err != nil {
		log.Printf("ERROR: Mechanism failed for auction %s: %v", req.AuctionID, err)
		return failedResponse(startTime, "Mechanism failed: %v", err)
	}

	// Step 4: Attest the outcome
	runID := uuid.NewString()
	awards := auctionapi.AwardsFromResult(result.VCG)
	reserveRejected := auctionapi.RejectedToExcluded(result.ReserveRejected)

	userData, err := BuildOutcomeUserData(req, runID, bids, policy, result.VCG.Welfare, awards, excluded)
	if err != nil {
		return failedResponse(startTime, "Enclave processing failed: %v", err)
	}
	attestation, err := GenerateOutcomeAttestation(attester, userData)
	if err != nil {
		log.Printf("ERROR: TEE attestation failed: %v", err)
		return failedResponse(startTime, "Enclave processing failed: %v", err)
	}

	processingTime := time.Since(startTime).Milliseconds()
	log.Printf("INFO: VCG auction %s complete: run=%s welfare=%.4f winners=%v payments=%.4f processing=%dms",
		req.AuctionID, runID, result.VCG.Welfare, result.VCG.Allocation.Winners(), result.VCG.TotalPayments(), processingTime)

	return auctionapi.VCGResponse{
		Type:                  auctionapi.TypeVCGResponse,
		Success:               true,
		Message:               fmt.Sprintf("Processed %d bids in enclave", len(bids)),
		RunID:                 runID,
		Welfare:               result.VCG.Welfare,
		Awards:                awards,
		AttestationCOSEBase64: attestation.EncodeBase64(),
		ExcludedBids:          excluded,
		ReserveRejectedBids:   reserveRejected,
		ProcessingTime:        processingTime,
	}
}

// openBids flattens the request into core bids, decrypting sealed values.
// Plain values pass through untouched so malformed ones still fail the run.
func openBids(req auctionapi.VCGRequest, keyManager *KeyManager) ([]core.Bid, []auctionapi.ExcludedBid) {
	bids := make([]core.Bid, 0)
	excluded := make([]auctionapi.ExcludedBid, 0)

	for _, valuation := range req.Bidders {
		for _, bundleBid := range valuation.Bids {
			bundle := bundleBid.Bundle()
			if bundleBid.EncryptedValue == nil {
				bids = append(bids, core.Bid{Bidder: valuation.Bidder, Bundle: bundle, Value: bundleBid.Value})
				continue
			}

			exclude := func(reason string, err error) {
				log.Printf("INFO: Excluding bid of %s for %s: %v", valuation.Bidder, bundle, err)
				excluded = append(excluded, auctionapi.ExcludedBid{
					Bidder: valuation.Bidder,
					Items:  bundle.Labels(),
					Reason: reason,
				})
			}

			if keyManager == nil {
				exclude(reasonDecryptionFailed, fmt.Errorf("no key manager available"))
				continue
			}

			value, err := keyManager.OpenBidValue(bundleBid.EncryptedValue)
			if errors.Is(err, sealing.ErrInvalidPayload) {
				exclude(reasonInvalidPayload, err)
				continue
			}
			if err != nil {
				exclude(reasonDecryptionFailed, err)
				continue
			}

			bid := core.Bid{Bidder: valuation.Bidder, Bundle: bundle, Value: value}
			if err := core.ValidateBid(bid); err != nil {
				exclude(reasonInvalidValue, err)
				continue
			}
			bids = append(bids, bid)
		}
	}

	return bids, excluded
}
