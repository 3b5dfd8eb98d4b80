package coprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePlaceBidCall_EmbedsCommitmentAndUserOp(t *testing.T) {
	commitment := [32]byte{1, 2, 3}
	userOp := []byte{0xAA, 0xBB, 0xCC}

	call, err := encodePlaceBidCall(commitment, userOp)
	require.NoError(t, err)

	assert.Equal(t, intentsModuleIndex, call[0])
	assert.Equal(t, placeBidCallIndex, call[1])
	assert.Equal(t, commitment[:], call[2:34])
	assert.Contains(t, string(call), string(userOp))
}

func TestEncodeRetractBidCall_EmbedsCommitment(t *testing.T) {
	commitment := [32]byte{9, 9, 9}
	call := encodeRetractBidCall(commitment)

	assert.Equal(t, intentsModuleIndex, call[0])
	assert.Equal(t, retractBidCallIndex, call[1])
	assert.Equal(t, commitment[:], call[2:34])
}

// signExtrinsic's output must be self-describing: its own compact length
// prefix, once decoded, accounts for exactly the rest of the bytes.
func TestSignExtrinsic_LengthPrefixMatchesBody(t *testing.T) {
	key := testFillerKey(t)
	call := encodeRetractBidCall([32]byte{1})

	extrinsic, err := signExtrinsic(key, call, 7)
	require.NoError(t, err)

	d := newDecoder(extrinsic)
	n, err := d.readCompactLength()
	require.NoError(t, err)
	assert.Equal(t, len(extrinsic)-d.pos, n)

	body, err := d.readN(n)
	require.NoError(t, err)
	assert.Equal(t, extrinsicVersion4, body[0])
	assert.Equal(t, multiAddressID, body[1])

	pub := key.PublicKey()
	assert.Equal(t, pub[:], body[2:34])
	assert.Equal(t, byte(SignatureSr25519), body[34])
}

func TestSignExtrinsic_DifferentNoncesProduceDifferentExtrinsics(t *testing.T) {
	key := testFillerKey(t)
	call := encodeRetractBidCall([32]byte{2})

	a, err := signExtrinsic(key, call, 0)
	require.NoError(t, err)
	b, err := signExtrinsic(key, call, 1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
