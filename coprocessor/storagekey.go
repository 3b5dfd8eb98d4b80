package coprocessor

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// intentsBidsModule/intentsBidsItem name the pallet/storage item the
// double map bids[commitment][filler] = deposit lives under (spec.md §4.6).
const (
	intentsBidsModule = "Intents"
	intentsBidsItem   = "Bids"
)

// offchainBidKeyPrefix is the literal prefix of the off-chain key spec.md
// §4.6 specifies: "intents::bid::" ++ commitment_bytes(32) ++ filler_pubkey(32).
const offchainBidKeyPrefix = "intents::bid::"

// twox128 is Substrate's "Twox128" storage hasher: two independent xxHash64
// digests (seeds 0 and 1) concatenated to 16 bytes. Used, unkeyed, to hash
// pallet and storage item names into a fixed-width prefix.
func twox128(data []byte) []byte {
	out := make([]byte, 16)
	h0 := xxhash.Sum64(data)
	binary.LittleEndian.PutUint64(out[0:8], h0)
	h1 := xxhash.NewWithSeed(1)
	h1.Write(data)
	binary.LittleEndian.PutUint64(out[8:16], h1.Sum64())
	return out
}

// blake2b128Concat is Substrate's "Blake2_128Concat" storage hasher: a
// 16-byte Blake2b-128 digest of the key followed by the key itself
// untouched, so the original key can be recovered from a returned storage
// key (BidsFor needs this to learn which filler a key belongs to).
func blake2b128Concat(key []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(key)
	digest := h.Sum(nil)
	out := make([]byte, 0, len(digest)+len(key))
	out = append(out, digest...)
	out = append(out, key...)
	return out
}

// bidsStoragePrefix is the storage key prefix for every bids[commitment][*]
// entry: Twox128(module) ++ Twox128(item) ++ Blake2_128Concat(commitment).
// state_getKeysPaged against this prefix enumerates every filler that has
// bid on commitment without the caller needing to know them in advance.
func bidsStoragePrefix(commitment [32]byte) []byte {
	out := make([]byte, 0, 16+16+16+32)
	out = append(out, twox128([]byte(intentsBidsModule))...)
	out = append(out, twox128([]byte(intentsBidsItem))...)
	out = append(out, blake2b128Concat(commitment[:])...)
	return out
}

// fillerFromBidStorageKey recovers the filler pubkey from a full storage
// key returned under bidsStoragePrefix(commitment): the trailing 32 bytes
// are the plain (unhashed) tail Blake2_128Concat(filler) preserves.
func fillerFromBidStorageKey(key []byte) ([32]byte, bool) {
	var filler [32]byte
	if len(key) < 32 {
		return filler, false
	}
	copy(filler[:], key[len(key)-32:])
	return filler, true
}

// offchainBidKey builds the off-chain local-storage key spec.md §4.6
// specifies for fetching a filler's off-chain bid blob.
func offchainBidKey(commitment, filler [32]byte) []byte {
	out := make([]byte, 0, len(offchainBidKeyPrefix)+32+32)
	out = append(out, []byte(offchainBidKeyPrefix)...)
	out = append(out, commitment[:]...)
	out = append(out, filler[:]...)
	return out
}
