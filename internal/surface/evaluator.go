package surface

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/iv-surface/internal/iv"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// DefaultMinHorizon excludes contracts closer than ~25 days to expiry, whose
// quotes map to unstable volatilities.
const DefaultMinHorizon = 0.07

// StrikeRange is an inclusive strike filter. A zero Max means no upper bound.
type StrikeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// StrikeRangeFromSpot builds the window [spot*minPct/100, spot*maxPct/100].
func StrikeRangeFromSpot(spot, minPct, maxPct float64) StrikeRange {
	return StrikeRange{Min: spot * minPct / 100, Max: spot * maxPct / 100}
}

// Contains reports whether strike lies inside the range.
func (s StrikeRange) Contains(strike float64) bool {
	if strike < s.Min {
		return false
	}
	return s.Max == 0 || strike <= s.Max
}

// Recorder receives per-outcome counts and batch timings. *metrics.Collector
// satisfies it.
type Recorder interface {
	ObserveRows(outcome string, n int)
	ObserveBatch(d time.Duration)
}

// Options configure a batch run.
type Options struct {
	MinHorizon float64        // quotes with TimeToExpiry below this are skipped
	Strikes    StrikeRange    // strike window, inclusive
	Kinds      []pricing.Kind // kinds to evaluate; empty means all
	Workers    int            // concurrent solver goroutines; <= 0 means GOMAXPROCS
	Where      *Where         // optional quote predicate; nil keeps all
	Solver     iv.Config
}

// DefaultOptions evaluates calls and puts of every strike with the default solver policy.
func DefaultOptions() Options {
	return Options{
		MinHorizon: DefaultMinHorizon,
		Workers:    runtime.GOMAXPROCS(0),
		Solver:     iv.DefaultConfig(),
	}
}

func (o Options) validate() error {
	if math.IsNaN(o.MinHorizon) || o.MinHorizon < 0 {
		return &iv.DomainError{Field: "min_horizon", Value: o.MinHorizon, Reason: "must be non-negative"}
	}
	if o.Strikes.Min < 0 || o.Strikes.Max < 0 || (o.Strikes.Max != 0 && o.Strikes.Max < o.Strikes.Min) {
		return &iv.DomainError{Field: "strikes", Value: o.Strikes, Reason: "must be a non-negative, ordered range"}
	}
	for _, k := range o.Kinds {
		if k != pricing.Call && k != pricing.Put {
			return &iv.DomainError{Field: "kinds", Value: k, Reason: "expected C or P"}
		}
	}
	return nil
}

// Evaluator runs the implied-volatility solver over option chains.
type Evaluator struct {
	opts     Options
	solver   *iv.Solver
	recorder Recorder
}

// NewEvaluator validates opts. rec may be nil.
func NewEvaluator(opts Options, rec Recorder) (*Evaluator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	solver, err := iv.NewSolver(opts.Solver)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{opts: opts, solver: solver, recorder: rec}, nil
}

// Options returns the evaluator's effective options.
func (e *Evaluator) Options() Options { return e.opts }

type outcome int

const (
	outcomeFiltered outcome = iota
	outcomeSolved
	outcomeNotBracketed
	outcomeNoConvergence
	outcomeDegenerate
	outcomeRejected
)

var outcomeLabels = [...]string{"filtered", "solved", "not_bracketed", "no_convergence", "degenerate", "rejected"}

type slot struct {
	outcome outcome
	row     Result
}

// Evaluate solves every eligible quote against mctx.
//
// Quotes outside the strike window, of an unselected kind, closer to expiry
// than MinHorizon, or failing Where are skipped. Quotes whose volatility cannot
// be solved, or whose own fields are invalid, are dropped. Neither case fails
// the batch: only an invalid MarketContext or a cancelled ctx does. Rows keep
// the input order.
func (e *Evaluator) Evaluate(ctx context.Context, quotes []OptionQuote, mctx MarketContext, evaluatedAt time.Time) (*Table, error) {
	if err := mctx.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	slots := make([]slot, len(quotes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i := range quotes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// each goroutine owns slots[i]; no other writer touches it
			slots[i] = e.evaluateOne(quotes[i], mctx, evaluatedAt)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate batch: %w", err)
	}

	table := &Table{
		RunID:       uuid.NewString(),
		Market:      mctx,
		EvaluatedAt: evaluatedAt,
		Rows:        make([]Result, 0, len(quotes)),
	}
	counts := make([]int, len(outcomeLabels))
	for _, s := range slots {
		counts[s.outcome]++
		if s.outcome == outcomeSolved {
			table.Rows = append(table.Rows, s.row)
		}
	}

	table.Stats = Stats{
		Total:         len(quotes),
		Filtered:      counts[outcomeFiltered],
		Solved:        counts[outcomeSolved],
		NotBracketed:  counts[outcomeNotBracketed],
		NoConvergence: counts[outcomeNoConvergence],
		Degenerate:    counts[outcomeDegenerate],
		Rejected:      counts[outcomeRejected],
	}

	if e.recorder != nil {
		for o, n := range counts {
			e.recorder.ObserveRows(outcomeLabels[o], n)
		}
		e.recorder.ObserveBatch(time.Since(start))
	}

	logger.Debugf("batch %s: %d quotes, %d solved, %d filtered, %d unsolvable, %d rejected",
		table.RunID, table.Stats.Total, table.Stats.Solved, table.Stats.Filtered,
		table.Stats.NotBracketed+table.Stats.NoConvergence+table.Stats.Degenerate, table.Stats.Rejected)

	return table, nil
}

func (e *Evaluator) evaluateOne(q OptionQuote, mctx MarketContext, evaluatedAt time.Time) slot {
	if len(e.opts.Kinds) > 0 && !slices.Contains(e.opts.Kinds, q.Kind) {
		return slot{outcome: outcomeFiltered}
	}
	if !e.opts.Strikes.Contains(q.Strike) {
		return slot{outcome: outcomeFiltered}
	}

	tte := TimeToExpiry(q.Expiration, evaluatedAt)
	if tte < e.opts.MinHorizon || tte <= 0 {
		logger.Tracef("%s: time to expiry %.4f below horizon", q.ContractSymbol, tte)
		return slot{outcome: outcomeFiltered}
	}
	if keep, err := e.opts.Where.Keep(q, mctx.Spot, tte); err != nil || !keep {
		if err != nil {
			logger.Debugf("%s: where %q: %v", q.ContractSymbol, e.opts.Where, err)
		}
		return slot{outcome: outcomeFiltered}
	}

	vol, err := e.solver.ImpliedVol(q.Kind, mctx.Spot, q.Strike, mctx.RiskFreeRate, tte, q.LastPrice, mctx.DividendYield)
	if err != nil {
		logger.Debugf("%s: dropped: %v", q.ContractSymbol, err)
		switch iv.ReasonOf(err) {
		case iv.ReasonNotBracketed:
			return slot{outcome: outcomeNotBracketed}
		case iv.ReasonNoConvergence:
			return slot{outcome: outcomeNoConvergence}
		case iv.ReasonDegenerateRoot:
			return slot{outcome: outcomeDegenerate}
		}
		if !errors.Is(err, iv.ErrDomain) {
			logger.Warnf("%s: unexpected solver error: %v", q.ContractSymbol, err)
		}
		return slot{outcome: outcomeRejected}
	}

	return slot{
		outcome: outcomeSolved,
		row: Result{
			ContractSymbol:    q.ContractSymbol,
			Kind:              q.Kind,
			Strike:            q.Strike,
			TimeToExpiry:      tte,
			ImpliedVolatility: vol,
		},
	}
}

// Evaluate runs a one-off batch with opts and no metrics.
func Evaluate(ctx context.Context, quotes []OptionQuote, mctx MarketContext, evaluatedAt time.Time, opts Options) (*Table, error) {
	ev, err := NewEvaluator(opts, nil)
	if err != nil {
		return nil, err
	}
	return ev.Evaluate(ctx, quotes, mctx, evaluatedAt)
}
