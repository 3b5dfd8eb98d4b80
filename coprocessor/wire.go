// Wire decoding for the coprocessor's off-chain bid blobs (spec.md §4.6).
// This is new wire-format code with no teacher precedent in the Polymarket
// domain; grounded on the teacher's hand-rolled fixed-layout binary parsing
// discipline in exec/client.go (HMAC/base64 signing helpers: parse a known
// byte layout by hand, bounds-check every slice) applied to a SCALE-style
// compact-integer and tagged-union scheme instead.
package coprocessor

import "fmt"

// SignatureVariant tags which key scheme signed a bid.
type SignatureVariant byte

const (
	SignatureEVM      SignatureVariant = 0
	SignatureSr25519  SignatureVariant = 1
	SignatureEd25519  SignatureVariant = 2
)

// Signature is the decoded tagged-union signature prefix of a bid blob.
type Signature struct {
	Variant   SignatureVariant
	PublicKey []byte
	Sig       []byte
}

// Bid is the filler's opaque bid payload: a filler identity and an
// ABI-encoded user operation the filler never interprets.
type Bid struct {
	Filler [32]byte
	UserOp []byte
}

// decoder reads sequentially from a byte slice, tracking position and
// bounds. Every read is checked; short input is always an error, never a
// panic or a silently truncated read.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, fmt.Errorf("coprocessor: unexpected end of input at byte %d", d.pos)
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("coprocessor: unexpected end of input reading %d bytes at %d", n, d.pos)
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// readCompactLength decodes a SCALE-style compact-encoded length used to
// prefix address/public-key and signature fields (spec.md §4.6). Only the
// single-byte and two-byte modes are accepted for these fields; the
// four-byte and big-integer modes (bits 10/11) are rejected outright.
func (d *decoder) readCompactLength() (int, error) {
	b0, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch b0 & 0b11 {
	case 0b00:
		return int(b0 >> 2), nil
	case 0b01:
		b1, err := d.readByte()
		if err != nil {
			return 0, err
		}
		return int(uint16(b1)<<6 | uint16(b0>>2)), nil
	default:
		return 0, fmt.Errorf("coprocessor: compact length mode %02b rejected for address/signature field", b0&0b11)
	}
}

// DecodeSignature parses the tagged-union Signature prefix of a bid blob
// and returns the remaining bytes (the length-prefixed Bid payload).
func DecodeSignature(blob []byte) (Signature, []byte, error) {
	d := newDecoder(blob)

	variantByte, err := d.readByte()
	if err != nil {
		return Signature{}, nil, err
	}
	variant := SignatureVariant(variantByte)
	switch variant {
	case SignatureEVM, SignatureSr25519, SignatureEd25519:
	default:
		return Signature{}, nil, fmt.Errorf("coprocessor: unknown signature variant %d", variantByte)
	}

	pkLen, err := d.readCompactLength()
	if err != nil {
		return Signature{}, nil, err
	}
	pubKey, err := d.readN(pkLen)
	if err != nil {
		return Signature{}, nil, err
	}

	sigLen, err := d.readCompactLength()
	if err != nil {
		return Signature{}, nil, err
	}
	sig, err := d.readN(sigLen)
	if err != nil {
		return Signature{}, nil, err
	}

	sigCopy := append([]byte(nil), sig...)
	pubKeyCopy := append([]byte(nil), pubKey...)

	return Signature{Variant: variant, PublicKey: pubKeyCopy, Sig: sigCopy}, d.buf[d.pos:], nil
}

// DecodeBid parses a Bid{filler, user_op} from the bytes remaining after
// DecodeSignature. filler is a fixed 32 bytes; user_op is
// compact-length-prefixed and passed through opaquely.
func DecodeBid(rest []byte) (Bid, error) {
	d := newDecoder(rest)

	fillerBytes, err := d.readN(32)
	if err != nil {
		return Bid{}, err
	}

	opLen, err := d.readCompactLength()
	if err != nil {
		return Bid{}, err
	}
	userOp, err := d.readN(opLen)
	if err != nil {
		return Bid{}, err
	}

	var bid Bid
	copy(bid.Filler[:], fillerBytes)
	bid.UserOp = append([]byte(nil), userOp...)
	return bid, nil
}

// EncodeCompactLength is the inverse of readCompactLength, used by tests to
// verify round-trip identity (spec.md §8, "decoding a SCALE-compact length
// emits the same length that encoding consumed").
func EncodeCompactLength(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("coprocessor: negative length %d", n)
	}
	if n < 1<<6 {
		return []byte{byte(n << 2)}, nil
	}
	if n < 1<<14 {
		b0 := byte((n&0x3F)<<2 | 0b01)
		b1 := byte(n >> 6)
		return []byte{b0, b1}, nil
	}
	return nil, fmt.Errorf("coprocessor: length %d exceeds two-byte compact range", n)
}

// EncodeBid is the inverse of DecodeBid, used for round-trip tests.
func EncodeBid(b Bid) ([]byte, error) {
	lenBytes, err := EncodeCompactLength(len(b.UserOp))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 32+len(lenBytes)+len(b.UserOp))
	out = append(out, b.Filler[:]...)
	out = append(out, lenBytes...)
	out = append(out, b.UserOp...)
	return out, nil
}
