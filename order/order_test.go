package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(t *testing.T) Order {
	t.Helper()
	o, err := New(
		[32]byte{1},
		"EVM-97",
		"EVM-10200",
		1000,
		1,
		AmountFromInt(5),
		[]TokenAmount{{TokenID: "native", Amount: AmountFromInt(100)}},
		[]Output{{TokenID: "native", Amount: AmountFromInt(100), Beneficiary: [32]byte{2}}},
		nil,
		[32]byte{3},
	)
	require.NoError(t, err)
	return o
}

// P1 — commitment purity: recomputing the commitment from the same field
// values always yields the same id, and is independent of the order's own
// stored ID field.
func TestCommitment_Purity(t *testing.T) {
	o := sampleOrder(t)

	first := Commitment(o)
	second := Commitment(o)
	assert.Equal(t, first, second)

	mutated := o
	mutated.ID = ID{9, 9, 9}
	assert.Equal(t, first, Commitment(mutated))
}

func TestCommitment_DiffersOnFieldChange(t *testing.T) {
	o := sampleOrder(t)
	base := Commitment(o)

	changed := o
	changed.Nonce = o.Nonce + 1
	assert.NotEqual(t, base, Commitment(changed))
}

func TestVerify(t *testing.T) {
	o := sampleOrder(t)
	assert.NoError(t, Verify(o))

	o.Nonce++
	assert.ErrorIs(t, Verify(o), ErrCommitMismatch)
}

func TestNew_RequiresInputsAndOutputs(t *testing.T) {
	_, err := New([32]byte{}, "a", "b", 0, 0, Zero(), nil, []Output{{}}, nil, [32]byte{})
	assert.ErrorIs(t, err, ErrNoInputs)

	_, err = New([32]byte{}, "a", "b", 0, 0, Zero(), []TokenAmount{{}}, nil, nil, [32]byte{})
	assert.ErrorIs(t, err, ErrNoOutputs)
}

// P1 (full form) — commitment(o) == commitment(deserialize(serialize(o))):
// the commitment survives a real wire round trip, not just an in-memory
// field mutation.
func TestCommitment_SurvivesSerializeRoundTrip(t *testing.T) {
	o := sampleOrder(t)

	data, err := Serialize(o)
	require.NoError(t, err)

	roundTripped, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, Commitment(o), Commitment(roundTripped))
	assert.Equal(t, o, roundTripped)
	assert.NoError(t, Verify(roundTripped))
}

type fixedPriceOracle map[string]Amount

func (f fixedPriceOracle) USDPrice(tokenID string) Amount { return f[tokenID] }

func TestTotalInputValueUSD(t *testing.T) {
	o := sampleOrder(t)
	prices := fixedPriceOracle{"native": AmountFromInt(2)}

	total := TotalInputValueUSD(o, prices)
	assert.True(t, total.Equal(AmountFromInt(200)))
}
