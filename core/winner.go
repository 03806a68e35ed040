package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// maxMaskWidth is the largest bid count whose subsets fit in a uint64 mask.
const maxMaskWidth = 62

// cancelCheckInterval is how many masks are scanned between context checks.
const cancelCheckInterval = 1 << 12

// TieBreakPolicy decides which of several equal-value allocations is returned.
type TieBreakPolicy int

const (
	// TieBreakLatest keeps a candidate whose value is >= the best so far, so the
	// last-enumerated allocation among equals wins.
	TieBreakLatest TieBreakPolicy = iota
	// TieBreakFirst keeps a candidate only if it is strictly better, so the
	// first-enumerated allocation among equals wins.
	TieBreakFirst
)

func (p TieBreakPolicy) String() string {
	switch p {
	case TieBreakLatest:
		return "latest"
	case TieBreakFirst:
		return "first"
	default:
		return fmt.Sprintf("TieBreakPolicy(%d)", int(p))
	}
}

// ParseTieBreakPolicy parses "latest" (or "") and "first".
func ParseTieBreakPolicy(s string) (TieBreakPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest":
		return TieBreakLatest, nil
	case "first":
		return TieBreakFirst, nil
	default:
		return TieBreakLatest, fmt.Errorf("unknown tie-break policy %q", s)
	}
}

// Solver finds an admissible allocation of maximal value for a profile.
// The VCG calculator depends only on this interface, so any exact solver
// satisfying the same contract can replace the exhaustive one.
type Solver interface {
	Solve(ctx context.Context, profile *Profile) (Allocation, error)
}

// ExhaustiveSolver enumerates every subset of bids.
//
// Subsets are indexed by the integers 0..2^n-1, bit j selecting the j-th bid of
// the profile. Each admissible subset is scored and kept as the best according
// to TieBreak; the initial best is the empty allocation with value 0.
//
// Time O(2^n · n), extra space O(n) per worker. Weighted set packing is NP-hard,
// and in practice this solver stops being usable somewhere around 24–28 bids.
type ExhaustiveSolver struct {
	// TieBreak selects between equal-value allocations (default TieBreakLatest)
	TieBreak TieBreakPolicy

	// MaxBids rejects profiles with more bids than this; 0 means no limit beyond the mask width
	MaxBids int

	// Workers splits the subset range across this many goroutines; <= 1 scans sequentially
	Workers int
}

var _ Solver = ExhaustiveSolver{}

// DefaultSolver is the solver used when none is configured.
var DefaultSolver Solver = ExhaustiveSolver{}

// scanResult is the best candidate found within one mask range.
type scanResult struct {
	mask  uint64
	units int64
	found bool
}

// Solve returns the maximal-value admissible allocation for profile.
func (s ExhaustiveSolver) Solve(ctx context.Context, profile *Profile) (Allocation, error) {
	n := profile.Len()

	ctx, span := tracer.Start(ctx, "core.ExhaustiveSolver.Solve",
		trace.WithAttributes(
			attribute.Int("bids", n),
			attribute.String("tie_break", s.TieBreak.String()),
		))
	defer span.End()

	if n > maxMaskWidth || (s.MaxBids > 0 && n > s.MaxBids) {
		limit := maxMaskWidth
		if s.MaxBids > 0 && s.MaxBids < limit {
			limit = s.MaxBids
		}
		err := fmt.Errorf("%w: %d bids, limit %d", ErrTooManyBids, n, limit)
		span.RecordError(err)
		span.SetStatus(codes.Error, "too many bids")
		solveTotal.WithLabelValues("too_many_bids").Inc()
		return Allocation{}, err
	}

	start := time.Now()
	compiled := compileProfile(profile)
	total := uint64(1) << uint(n)

	best, err := s.scan(ctx, compiled, total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search abandoned")
		solveTotal.WithLabelValues("canceled").Inc()
		return Allocation{}, err
	}

	allocation := Allocation{
		Bids:  make([]Bid, 0),
		Value: fromUnits(best.units),
	}
	for j := 0; j < n; j++ {
		if best.mask&(1<<uint(j)) != 0 {
			allocation.Bids = append(allocation.Bids, profile.Bid(j))
		}
	}

	solveTotal.WithLabelValues("success").Inc()
	solveDuration.Observe(time.Since(start).Seconds())
	subsetsEvaluated.Add(float64(total))
	span.SetAttributes(
		attribute.Float64("value", allocation.Value),
		attribute.Int("winning_bids", len(allocation.Bids)),
	)
	span.SetStatus(codes.Ok, "solved")

	return allocation, nil
}

// scan evaluates masks [0, total), optionally in parallel chunks.
func (s ExhaustiveSolver) scan(ctx context.Context, compiled *compiledProfile, total uint64) (scanResult, error) {
	workers := uint64(1)
	if s.Workers > 1 {
		workers = uint64(s.Workers)
	}
	if workers > total {
		workers = total
	}
	// Small searches are not worth the goroutines.
	if workers <= 1 || total/workers < cancelCheckInterval {
		workers = 1
	}

	if workers == 1 {
		best, err := s.scanRange(ctx, compiled, 0, total)
		if err != nil {
			return scanResult{}, err
		}
		return s.merge(scanResult{found: true}, best), nil
	}

	chunk := total / workers
	results := make([]scanResult, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := uint64(0); w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if w == workers-1 {
			hi = total
		}
		g.Go(func() error {
			best, err := s.scanRange(gctx, compiled, lo, hi)
			if err != nil {
				return err
			}
			results[w] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return scanResult{}, err
	}

	// Chunks are merged in mask order, which reproduces the sequential scan.
	best := scanResult{found: true}
	for _, r := range results {
		best = s.merge(best, r)
	}
	return best, nil
}

// scanRange finds the best admissible mask in [lo, hi) under the tie-break policy.
func (s ExhaustiveSolver) scanRange(ctx context.Context, compiled *compiledProfile, lo, hi uint64) (scanResult, error) {
	cand := compiled.newCandidate()
	best := scanResult{}

	for mask := lo; mask < hi; mask++ {
		if (mask-lo)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return scanResult{}, err
			}
		}

		units, ok := compiled.evaluate(mask, cand)
		if !ok {
			continue
		}
		if !best.found || s.better(units, best.units) {
			best = scanResult{mask: mask, units: units, found: true}
		}
	}

	return best, nil
}

// merge combines the best of an earlier mask range with the best of a later one.
func (s ExhaustiveSolver) merge(earlier, later scanResult) scanResult {
	if !later.found {
		return earlier
	}
	if s.better(later.units, earlier.units) {
		return later
	}
	return earlier
}

// better reports whether a later candidate displaces the current best.
func (s ExhaustiveSolver) better(candidate, best int64) bool {
	if s.TieBreak == TieBreakFirst {
		return candidate > best
	}
	return candidate >= best
}

// ComputeWinner solves winner determination for profile with DefaultSolver.
func ComputeWinner(ctx context.Context, profile *Profile) (Allocation, error) {
	return DefaultSolver.Solve(ctx, profile)
}
