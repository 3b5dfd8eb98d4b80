package coprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFillerKey(t *testing.T) *FillerKey {
	t.Helper()
	key, err := NewFillerKey("//Alice")
	require.NoError(t, err)
	return key
}

func TestNewFillerKey_RequiresSeedURI(t *testing.T) {
	_, err := NewFillerKey("")
	assert.Error(t, err)
}

func TestFillerKey_SignProducesVerifiableSignature(t *testing.T) {
	key := testFillerKey(t)
	payload := []byte("placeBid(commitment, user_op)")

	sig, err := key.Sign(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	assert.True(t, key.pair.Verify(payload, sig))

	pub := key.PublicKey()
	assert.NotEqual(t, [32]byte{}, pub)
}
