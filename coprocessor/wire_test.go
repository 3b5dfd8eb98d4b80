package coprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactLength_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 63, 64, 100, 4000, 16383} {
		encoded, err := EncodeCompactLength(n)
		require.NoError(t, err, "n=%d", n)

		d := newDecoder(append(encoded, 0xFF)) // trailing byte to prove no over-read
		got, err := d.readCompactLength()
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, n, got, "n=%d", n)
		assert.Equal(t, len(encoded), d.pos, "consumed exactly the encoded bytes for n=%d", n)
	}
}

func TestCompactLength_RejectsHighModes(t *testing.T) {
	for _, mode := range []byte{0b10, 0b11} {
		_, err := newDecoder([]byte{mode}).readCompactLength()
		assert.Error(t, err)
	}
}

func TestDecodeSignature_EVM(t *testing.T) {
	addr := make([]byte, 20)
	for i := range addr {
		addr[i] = byte(i)
	}
	sig := make([]byte, 65)
	for i := range sig {
		sig[i] = byte(200 + i)
	}

	addrLen, err := EncodeCompactLength(len(addr))
	require.NoError(t, err)
	sigLen, err := EncodeCompactLength(len(sig))
	require.NoError(t, err)

	blob := append([]byte{byte(SignatureEVM)}, addrLen...)
	blob = append(blob, addr...)
	blob = append(blob, sigLen...)
	blob = append(blob, sig...)
	blob = append(blob, []byte("rest")...)

	decoded, rest, err := DecodeSignature(blob)
	require.NoError(t, err)
	assert.Equal(t, SignatureEVM, decoded.Variant)
	assert.Equal(t, addr, decoded.PublicKey)
	assert.Equal(t, sig, decoded.Sig)
	assert.Equal(t, []byte("rest"), rest)
}

func TestDecodeSignature_UnknownVariant(t *testing.T) {
	_, _, err := DecodeSignature([]byte{99, 0})
	assert.Error(t, err)
}

func TestBid_RoundTrip(t *testing.T) {
	b := Bid{Filler: [32]byte{1, 2, 3}, UserOp: []byte("abi-encoded-user-op")}

	encoded, err := EncodeBid(b)
	require.NoError(t, err)

	decoded, err := DecodeBid(encoded)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
}

func TestBid_EmptyUserOp(t *testing.T) {
	b := Bid{Filler: [32]byte{9}}
	encoded, err := EncodeBid(b)
	require.NoError(t, err)

	decoded, err := DecodeBid(encoded)
	require.NoError(t, err)
	assert.Equal(t, b.Filler, decoded.Filler)
	assert.Empty(t, decoded.UserOp)
}

func TestDecodeBid_TruncatedInput(t *testing.T) {
	_, err := DecodeBid(make([]byte, 10))
	assert.Error(t, err)
}
