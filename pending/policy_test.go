package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/intentfiller/order"
)

func band() Band {
	return Band{
		MinAmount:        order.AmountFromInt(1),
		MaxAmount:        order.AmountFromInt(1000),
		MinConfirmations: 1,
		MaxConfirmations: 5,
	}
}

// P2 — confirmation monotonicity: at the band boundaries required equals
// max/min confirmations, and required is nondecreasing in usd value.
func TestPolicy_Required_BandBoundaries(t *testing.T) {
	p := NewPolicy(map[string]Band{"EVM-97": band()})

	assert.Equal(t, uint64(1), p.Required("EVM-97", order.AmountFromInt(1)))
	assert.Equal(t, uint64(1), p.Required("EVM-97", order.Zero()))
	assert.Equal(t, uint64(5), p.Required("EVM-97", order.AmountFromInt(1000)))
	assert.Equal(t, uint64(5), p.Required("EVM-97", order.AmountFromInt(5000)))
}

func TestPolicy_Required_Monotonic(t *testing.T) {
	p := NewPolicy(map[string]Band{"EVM-97": band()})

	prev := uint64(0)
	for _, v := range []int64{1, 100, 250, 500, 750, 1000} {
		req := p.Required("EVM-97", order.AmountFromInt(v))
		assert.GreaterOrEqual(t, req, prev)
		prev = req
	}
}

// An unconfigured chain must fail safe with the richest requirement, not
// the laxest: 0 confirmations would promote every order on that chain to
// READY immediately (spec.md §4.3, P2).
func TestPolicy_Required_UnconfiguredChain(t *testing.T) {
	p := NewPolicy(map[string]Band{})
	assert.Equal(t, UnconfiguredChainConfirmations, p.Required("EVM-unknown", order.AmountFromInt(100)))
}
