// Package strategy defines the pluggable fill-strategy contract and the
// registry/evaluator that ranks registered strategies against an order.
//
// Grounded on the teacher's strategy.Strategy plug-in interface
// (strategy/interface.go) — Name()/Enabled() carry over verbatim in shape;
// there is no Config() — generalized from "OnTick(Tick) -> *Signal" to the three-call
// CanFill/Profitability/Execute contract spec.md §4.4 requires.
package strategy

import (
	"context"

	"github.com/web3guy0/intentfiller/order"
)

// ExecutionResult is what Execute returns: either a direct on-chain
// transaction hash or a coprocessor bid outcome, never both.
type ExecutionResult struct {
	Success    bool
	TxHash     [32]byte
	BidSubmitted bool
	Error      error
}

// Strategy is the capability set every fill strategy must implement
// (spec.md §4.4). profitability's return convention: a unitless score
// denominated in "expected profit in the destination chain's fee token,
// net of gas" — strategies normalize their own internal metric (USD, bps,
// DEX quote delta, ...) into that score before returning it. Strictly
// positive means profitable. The evaluator gives zero or negative scores no
// special meaning: it drops an order only when the best score is below its
// configured floor, so with the default floor of 0 a zero score is selected.
type Strategy interface {
	// Name returns the strategy identifier, used for the evaluator's
	// stable tie-break and for bid-store/log attribution.
	Name() string

	// CanFill reports whether this strategy is structurally able to fill
	// the order at all (right chain pair, right token, deadline not yet
	// passed). Cheap; called on every order for every strategy.
	CanFill(ctx context.Context, o order.Order) bool

	// Profitability returns the expected-profit score for an order this
	// strategy has already said it CanFill. Only called for eligible
	// strategies.
	Profitability(ctx context.Context, o order.Order) order.Amount

	// Execute carries out the fill: either a direct destination-chain
	// transaction or a coprocessor bid submission. Runs on the
	// per-destination-chain queue (concurrency 1) once selected.
	Execute(ctx context.Context, o order.Order) ExecutionResult

	// Enabled reports whether the strategy is currently active; disabled
	// strategies are skipped by the evaluator without being asked
	// CanFill at all.
	Enabled() bool
}
