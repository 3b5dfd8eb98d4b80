package coprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBidsStoragePrefix_DeterministicAndCommitmentSensitive(t *testing.T) {
	a := bidsStoragePrefix([32]byte{1})
	b := bidsStoragePrefix([32]byte{1})
	c := bidsStoragePrefix([32]byte{2})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// Twox128(module) ++ Twox128(item) ++ Blake2_128Concat(commitment)
	assert.Len(t, a, 16+16+16+32)
}

func TestFillerFromBidStorageKey_RecoversTrailingFiller(t *testing.T) {
	commitment := [32]byte{1}
	filler := [32]byte{5, 6, 7}

	fullKey := append(bidsStoragePrefix(commitment), blake2b128Concat(filler[:])...)

	got, ok := fillerFromBidStorageKey(fullKey)
	assert.True(t, ok)
	assert.Equal(t, filler, got)
}

func TestFillerFromBidStorageKey_RejectsShortKey(t *testing.T) {
	_, ok := fillerFromBidStorageKey([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestOffchainBidKey_LiteralPrefixAndFields(t *testing.T) {
	commitment := [32]byte{1}
	filler := [32]byte{2}

	key := offchainBidKey(commitment, filler)

	assert.Equal(t, offchainBidKeyPrefix, string(key[:len(offchainBidKeyPrefix)]))
	assert.Equal(t, commitment[:], key[len(offchainBidKeyPrefix):len(offchainBidKeyPrefix)+32])
	assert.Equal(t, filler[:], key[len(offchainBidKeyPrefix)+32:])
}
