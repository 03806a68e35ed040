package core

import (
	"context"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// VCGOptions configures a VCG payment computation.
type VCGOptions struct {
	// Solver used for the full profile and every exclusion; nil means DefaultSolver
	Solver Solver

	// Workers bounds concurrent exclusion runs; 0 means runtime.GOMAXPROCS(0)
	Workers int
}

func (o VCGOptions) solver() Solver {
	if o.Solver == nil {
		return DefaultSolver
	}
	return o.Solver
}

func (o VCGOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ComputeVCGPayments computes the efficient allocation and each declared
// bidder's Clarke pivot payment:
//
//	payment(i) = V(ω₋ᵢ) − Σ_{j≠i} v_j(ω*)
//
// where ω* is the efficient allocation of the full profile and V(ω₋ᵢ) the
// optimal welfare with bidder i removed. The solver runs once for the full
// profile and once per declared bidder.
func ComputeVCGPayments(ctx context.Context, profile *Profile, opts VCGOptions) (*VCGResult, error) {
	bidders := profile.Bidders()

	ctx, span := tracer.Start(ctx, "core.ComputeVCGPayments",
		trace.WithAttributes(
			attribute.Int("bids", profile.Len()),
			attribute.Int("bidders", len(bidders)),
		))
	defer span.End()

	fail := func(err error) (*VCGResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		vcgRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	solver := opts.solver()

	// Step 1: Efficient allocation over the full profile
	efficient, err := solver.Solve(ctx, profile)
	if err != nil {
		return fail(fmt.Errorf("failed to solve full profile: %w", err))
	}
	welfareUnits := allocationUnits(efficient)

	// Step 2: One exclusion run per declared bidder, each writing its own slot
	without := make([]int64, len(bidders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, bidder := range bidders {
		g.Go(func() error {
			alloc, err := solver.Solve(gctx, profile.Exclude(bidder))
			if err != nil {
				return fmt.Errorf("failed to solve profile without %s: %w", bidder, err)
			}
			without[i] = allocationUnits(alloc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	// Step 3: Clarke pivot payments
	result := &VCGResult{
		Allocation: efficient,
		Welfare:    fromUnits(welfareUnits),
		Outcomes:   make([]BidderOutcome, 0, len(bidders)),
	}
	var paidUnits int64
	for i, bidder := range bidders {
		ownUnits := int64(0)
		for _, bid := range efficient.Bids {
			if bid.Bidder == bidder {
				ownUnits += toUnits(bid.Value)
			}
		}
		othersUnits := welfareUnits - ownUnits

		paymentUnits := without[i] - othersUnits
		if paymentUnits < 0 {
			return fail(fmt.Errorf("%w: bidder %s owes %s", ErrNegativePayment, bidder, formatUnits(paymentUnits)))
		}
		paidUnits += paymentUnits

		result.Outcomes = append(result.Outcomes, BidderOutcome{
			Bidder:         bidder,
			Bundles:        efficient.BundlesFor(bidder),
			Value:          fromUnits(ownUnits),
			Payment:        fromUnits(paymentUnits),
			WelfareWithout: fromUnits(without[i]),
		})
	}

	vcgRuns.WithLabelValues("success").Inc()
	vcgPaymentsTotal.Add(fromUnits(paidUnits))
	span.SetAttributes(
		attribute.Float64("welfare", result.Welfare),
		attribute.Float64("revenue", fromUnits(paidUnits)),
	)
	span.SetStatus(codes.Ok, "payments computed")

	return result, nil
}

// allocationUnits sums an allocation's bid values in fixed point.
func allocationUnits(a Allocation) int64 {
	var units int64
	for _, bid := range a.Bids {
		units += toUnits(bid.Value)
	}
	return units
}
