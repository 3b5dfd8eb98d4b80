package coprocessor

import (
	"fmt"

	subkey "github.com/vedhavyas/go-subkey"
	"github.com/vedhavyas/go-subkey/sr25519"
)

// FillerKey is the Sr25519 keypair the filler signs bid extrinsics with
// (spec.md §4.6: submit_bid/retract_bid are "encodable by the filler's
// signing key (Sr25519)").
//
// Grounded on the Jason-chen-taiwan-arcSignv2 address-derivation package's
// vedhavyas/go-subkey usage, swapped from address derivation to signing.
type FillerKey struct {
	pair subkey.KeyPair
}

// NewFillerKey derives an Sr25519 keypair from a secret URI: a raw seed, a
// BIP39 mnemonic, or a mnemonic//derivation-path, per go-subkey's
// DeriveKeyPair convention.
func NewFillerKey(secretURI string) (*FillerKey, error) {
	if secretURI == "" {
		return nil, fmt.Errorf("coprocessor: COPROCESSOR_SEED_URI is required")
	}
	pair, err := subkey.DeriveKeyPair(sr25519.Scheme{}, secretURI)
	if err != nil {
		return nil, fmt.Errorf("coprocessor: derive filler key: %w", err)
	}
	return &FillerKey{pair: pair}, nil
}

// PublicKey is the 32-byte Sr25519 public key identifying this filler on
// the coprocessor chain.
func (k *FillerKey) PublicKey() [32]byte {
	var pk [32]byte
	copy(pk[:], k.pair.Public())
	return pk
}

// Sign produces the raw Sr25519 signature over payload.
func (k *FillerKey) Sign(payload []byte) ([]byte, error) {
	return k.pair.Sign(payload)
}
