package order

import "github.com/shopspring/decimal"

// Amount is the filler's single numeric type for every monetary/token
// quantity (input/output amounts, fees, USD valuations, profit scores).
// The teacher's decimal.Decimal convention (execution/, risk/, storage/)
// is used uniformly rather than mixing bigint and float, resolving the
// numeric-type Open Question in spec.md §9.
type Amount = decimal.Decimal

// Zero returns the additive identity.
func Zero() Amount { return decimal.Zero }

// AmountFromString parses a base-10 decimal string (e.g. a wei amount as a
// plain integer string, or a fractional USD value).
func AmountFromString(s string) (Amount, error) {
	return decimal.NewFromString(s)
}

// AmountFromInt wraps a signed integer as an Amount.
func AmountFromInt(v int64) Amount {
	return decimal.NewFromInt(v)
}
