package coprocessor

import "fmt"

// Call indices for the coprocessor chain's intents pallet (spec.md §4.6).
// These address the same placeBid/retractBid calls BidsFor's off-chain
// reads observe the effects of.
const (
	intentsModuleIndex  byte = 40
	placeBidCallIndex   byte = 0
	retractBidCallIndex byte = 1
)

const (
	extrinsicVersion4 byte = 0x84 // signed bit (0x80) | format version 4
	multiAddressID    byte = 0x00
	immortalEra       byte = 0x00
)

// encodeCall SCALE-encodes a pallet call: module index, call index, then
// the call's own SCALE-encoded arguments.
func encodeCall(callIndex byte, args []byte) []byte {
	out := make([]byte, 0, 2+len(args))
	out = append(out, intentsModuleIndex, callIndex)
	out = append(out, args...)
	return out
}

// encodePlaceBidCall encodes intents.placeBid(commitment, user_op): the
// commitment followed by user_op length-prefixed the same way wire.go
// decodes an inbound Bid's user_op (spec.md §4.6).
func encodePlaceBidCall(commitment [32]byte, userOp []byte) ([]byte, error) {
	lenPrefix, err := EncodeCompactLength(len(userOp))
	if err != nil {
		return nil, fmt.Errorf("coprocessor: encode placeBid: %w", err)
	}
	args := make([]byte, 0, 32+len(lenPrefix)+len(userOp))
	args = append(args, commitment[:]...)
	args = append(args, lenPrefix...)
	args = append(args, userOp...)
	return encodeCall(placeBidCallIndex, args), nil
}

// encodeRetractBidCall encodes intents.retractBid(commitment).
func encodeRetractBidCall(commitment [32]byte) []byte {
	args := make([]byte, 32)
	copy(args, commitment[:])
	return encodeCall(retractBidCallIndex, args)
}

// signExtrinsic wraps call in a signed extrinsic v4: a compact length
// prefix around {version, MultiAddress::Id(filler), MultiSignature::Sr25519,
// an immortal era, a compact nonce and tip, then the call itself}. The
// Sr25519 signature covers {call, nonce, tip, era}.
func signExtrinsic(key *FillerKey, call []byte, nonce uint64) ([]byte, error) {
	nonceBytes, err := EncodeCompactLength(int(nonce))
	if err != nil {
		return nil, fmt.Errorf("coprocessor: encode nonce: %w", err)
	}
	tipBytes, err := EncodeCompactLength(0)
	if err != nil {
		return nil, fmt.Errorf("coprocessor: encode tip: %w", err)
	}

	payload := make([]byte, 0, len(call)+len(nonceBytes)+len(tipBytes)+1)
	payload = append(payload, call...)
	payload = append(payload, nonceBytes...)
	payload = append(payload, tipBytes...)
	payload = append(payload, immortalEra)

	sig, err := key.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("coprocessor: sign extrinsic: %w", err)
	}

	pub := key.PublicKey()
	body := make([]byte, 0, 1+1+32+1+len(sig)+1+len(nonceBytes)+len(tipBytes)+len(call))
	body = append(body, extrinsicVersion4)
	body = append(body, multiAddressID)
	body = append(body, pub[:]...)
	body = append(body, byte(SignatureSr25519))
	body = append(body, sig...)
	body = append(body, immortalEra)
	body = append(body, nonceBytes...)
	body = append(body, tipBytes...)
	body = append(body, call...)

	lenPrefix, err := EncodeCompactLength(len(body))
	if err != nil {
		return nil, fmt.Errorf("coprocessor: encode extrinsic length: %w", err)
	}
	return append(lenPrefix, body...), nil
}
