package pending

import "github.com/web3guy0/intentfiller/order"

// Band is the confirmation policy configuration for one source chain:
// value-sensitive linear interpolation between (MinAmount, MinConfirmations)
// and (MaxAmount, MaxConfirmations), clamped at both ends (spec.md §4.3,
// property P2).
type Band struct {
	MinAmount        order.Amount
	MaxAmount        order.Amount
	MinConfirmations uint64
	MaxConfirmations uint64
}

// UnconfiguredChainConfirmations is the requirement returned by
// Policy.Required for a source chain with no configured band. It is
// deliberately a high ceiling rather than 0: a missing band must never be
// laxer than a configured one, or the pending queue would promote orders on
// misconfigured chains to READY immediately (spec.md §4.3, P2).
const UnconfiguredChainConfirmations uint64 = 1 << 32

// Policy maps a chain id to its confirmation band. Pure and deterministic
// given (chain, amount) as required by spec.md §4.3.
type Policy struct {
	bands map[string]Band
}

// NewPolicy builds a policy from a table keyed by chain id (spec.md §6).
func NewPolicy(bands map[string]Band) *Policy {
	return &Policy{bands: bands}
}

// Required computes required(order): the number of confirmations an order
// on sourceChain needs given its total input USD value.
func (p *Policy) Required(sourceChain string, usdValue order.Amount) uint64 {
	band, ok := p.bands[sourceChain]
	if !ok {
		// No band configured: fail safe with the richest confirmation
		// requirement rather than guessing a lax one. This value is
		// effectively unreachable, so an unlisted chain never promotes.
		return UnconfiguredChainConfirmations
	}

	if usdValue.LessThanOrEqual(band.MinAmount) {
		return band.MinConfirmations
	}
	if usdValue.GreaterThanOrEqual(band.MaxAmount) {
		return band.MaxConfirmations
	}

	span := band.MaxAmount.Sub(band.MinAmount)
	if span.IsZero() {
		return band.MaxConfirmations
	}

	frac := usdValue.Sub(band.MinAmount).Div(span)
	confSpan := int64(band.MaxConfirmations) - int64(band.MinConfirmations)
	delta := frac.Mul(order.AmountFromInt(confSpan))

	required := int64(band.MinConfirmations) + delta.Round(0).IntPart()
	if required < int64(band.MinConfirmations) {
		required = int64(band.MinConfirmations)
	}
	if required > int64(band.MaxConfirmations) {
		required = int64(band.MaxConfirmations)
	}
	return uint64(required)
}
