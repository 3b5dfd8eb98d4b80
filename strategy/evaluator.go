package strategy

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/web3guy0/intentfiller/order"
)

// DropReason identifies why the evaluator declined to select any
// strategy for an order (spec.md §4.4, §7).
type DropReason string

const (
	DropNoViableStrategy DropReason = "no_viable_strategy"
	DropBelowThreshold   DropReason = "below_threshold"
)

// Verdict is the transient per-strategy evaluation result (spec.md §3,
// StrategyVerdict). It lives only inside the evaluator.
type Verdict struct {
	Strategy Strategy
	Score    order.Amount
}

// Decision is the outcome of evaluating one order.
type Decision struct {
	Selected *Verdict   // nil if the order was dropped
	Dropped  DropReason // only meaningful if Selected == nil
}

// Evaluator runs CanFill/Profitability across every registered strategy
// and selects the most profitable eligible one (spec.md §4.4).
//
// Grounded on the teacher's core/engine.go processTick loop (iterate
// strategies, ask each one whether it wants to act, then act), generalized
// from "first non-nil signal wins" to "parallel CanFill fan-out, then rank
// by profitability."
type Evaluator struct {
	registry       *Registry
	minProfitScore order.Amount
}

// NewEvaluator builds an evaluator with a configured profitability floor
// (spec.md §4.4, "Profitability floor").
func NewEvaluator(registry *Registry, minProfitScore order.Amount) *Evaluator {
	return &Evaluator{registry: registry, minProfitScore: minProfitScore}
}

// Evaluate runs the selection algorithm for one order:
//  1. CanFill on every registered strategy, in parallel.
//  2. Profitability for every eligible strategy.
//  3. Sort by score descending, stable by registration order.
//  4. Drop if empty, or if the best score is below the floor.
func (e *Evaluator) Evaluate(ctx context.Context, o order.Order) Decision {
	strategies := e.registry.All()

	type candidate struct {
		idx int
		s   Strategy
		ok  bool
	}

	eligible := make([]candidate, len(strategies))
	var wg sync.WaitGroup
	for i, s := range strategies {
		if !s.Enabled() {
			eligible[i] = candidate{idx: i, s: s, ok: false}
			continue
		}
		wg.Add(1)
		go func(i int, s Strategy) {
			defer wg.Done()
			ok := s.CanFill(ctx, o)
			eligible[i] = candidate{idx: i, s: s, ok: ok}
		}(i, s)
	}
	wg.Wait()

	var verdicts []Verdict
	for _, c := range eligible {
		if !c.ok {
			continue
		}
		score := c.s.Profitability(ctx, o)
		verdicts = append(verdicts, Verdict{Strategy: c.s, Score: score})
	}

	if len(verdicts) == 0 {
		log.Info().Str("order", o.ID.String()).Msg("order_dropped: no_viable_strategy")
		return Decision{Dropped: DropNoViableStrategy}
	}

	sort.SliceStable(verdicts, func(i, j int) bool {
		return verdicts[i].Score.GreaterThan(verdicts[j].Score)
	})

	best := verdicts[0]
	if best.Score.LessThan(e.minProfitScore) {
		log.Info().
			Str("order", o.ID.String()).
			Str("best_strategy", best.Strategy.Name()).
			Str("score", best.Score.String()).
			Msg("order_dropped: below_threshold")
		return Decision{Dropped: DropBelowThreshold}
	}

	return Decision{Selected: &best}
}
