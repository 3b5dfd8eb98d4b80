package pending

import (
	"context"

	"github.com/web3guy0/intentfiller/order"
)

// ChainConfirmations is the subset of the chain registry the adapter needs:
// confirmations of a source transaction.
type ChainConfirmations interface {
	ConfirmationsOfTx(ctx context.Context, chainID string, txHash [32]byte) (uint64, error)
}

// PolicyAdapter implements ConfirmationSource by combining the chain
// registry's confirmation count with the value-sensitive Policy and a price
// oracle for valuing an order's escrowed inputs (spec.md §4.3).
type PolicyAdapter struct {
	chains ChainConfirmations
	policy *Policy
	prices order.PriceOracle
}

// NewPolicyAdapter wires the three collaborators the queue needs to decide
// when an order is ready.
func NewPolicyAdapter(chains ChainConfirmations, policy *Policy, prices order.PriceOracle) *PolicyAdapter {
	return &PolicyAdapter{chains: chains, policy: policy, prices: prices}
}

func (a *PolicyAdapter) ConfirmationsOf(ctx context.Context, sourceChain string, sourceTx [32]byte) (uint64, error) {
	return a.chains.ConfirmationsOfTx(ctx, sourceChain, sourceTx)
}

func (a *PolicyAdapter) Required(sourceChain string, o order.Order) uint64 {
	usdValue := order.TotalInputValueUSD(o, a.prices)
	return a.policy.Required(sourceChain, usdValue)
}
