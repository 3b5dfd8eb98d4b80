// Package order defines the central value type the filler operates on: a
// cross-chain intent order observed on a source chain and destined for
// execution (or bid submission) on a destination chain.
package order

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// ID is a commitment hash: a deterministic function of an Order's fields.
// It is the primary key everywhere the filler tracks an order.
type ID [32]byte

func (id ID) String() string {
	return fmt.Sprintf("%x", [32]byte(id))
}

func (id ID) IsZero() bool {
	return id == ID{}
}

// TokenAmount is one leg of an order's inputs or outputs.
type TokenAmount struct {
	TokenID string
	Amount  Amount
}

// Output is a delivery obligation on the destination chain.
type Output struct {
	TokenID     string
	Amount      Amount
	Beneficiary [32]byte
}

// Order is the filler's central value. Immutable once constructed; field
// order below is exactly the order commitment() hashes over, so changing
// it changes every commitment.
type Order struct {
	ID          ID
	User        [32]byte
	SourceChain string
	DestChain   string
	Deadline    uint64
	Nonce       uint64
	Fees        Amount
	Inputs      []TokenAmount
	Outputs     []Output
	CallData    []byte
	SourceTx    [32]byte
}

var (
	ErrNoInputs       = errors.New("order: len(inputs) must be >= 1")
	ErrNoOutputs      = errors.New("order: len(outputs) must be >= 1")
	ErrCommitMismatch = errors.New("order: stored id does not match recomputed commitment")
)

// New builds an Order and stamps its commitment ID. Returns an error if the
// structural invariants in the data model (§3) are violated.
func New(user [32]byte, sourceChain, destChain string, deadline, nonce uint64, fees Amount, inputs []TokenAmount, outputs []Output, callData []byte, sourceTx [32]byte) (Order, error) {
	if len(inputs) == 0 {
		return Order{}, ErrNoInputs
	}
	if len(outputs) == 0 {
		return Order{}, ErrNoOutputs
	}
	o := Order{
		User:        user,
		SourceChain: sourceChain,
		DestChain:   destChain,
		Deadline:    deadline,
		Nonce:       nonce,
		Fees:        fees,
		Inputs:      inputs,
		Outputs:     outputs,
		CallData:    callData,
		SourceTx:    sourceTx,
	}
	o.ID = Commitment(o)
	return o, nil
}

// Commitment computes the deterministic id of an order. It is pure: calling
// it twice on the same field values (P1, commitment purity) yields the same
// 32 bytes regardless of the Order's own ID field, which is ignored here.
func Commitment(o Order) ID {
	h := sha256.New()
	h.Write(o.User[:])
	writeString(h, o.SourceChain)
	writeString(h, o.DestChain)
	writeUint64(h, o.Deadline)
	writeUint64(h, o.Nonce)
	writeString(h, o.Fees.String())
	writeUint64(h, uint64(len(o.Inputs)))
	for _, in := range o.Inputs {
		writeString(h, in.TokenID)
		writeString(h, in.Amount.String())
	}
	writeUint64(h, uint64(len(o.Outputs)))
	for _, out := range o.Outputs {
		writeString(h, out.TokenID)
		writeString(h, out.Amount.String())
		h.Write(out.Beneficiary[:])
	}
	writeUint64(h, uint64(len(o.CallData)))
	h.Write(o.CallData)
	h.Write(o.SourceTx[:])

	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// wireOrder is Order's on-the-wire shape, field-for-field, so Serialize and
// Commitment never drift from each other.
type wireOrder struct {
	ID          ID
	User        [32]byte
	SourceChain string
	DestChain   string
	Deadline    uint64
	Nonce       uint64
	Fees        Amount
	Inputs      []TokenAmount
	Outputs     []Output
	CallData    []byte
	SourceTx    [32]byte
}

// Serialize encodes o for transport or storage, e.g. as a recovery-job
// payload alongside the bid store. The encoding round-trips through
// Deserialize without changing o's commitment (P1).
func Serialize(o Order) ([]byte, error) {
	return json.Marshal(wireOrder(o))
}

// Deserialize is the inverse of Serialize.
func Deserialize(data []byte) (Order, error) {
	var w wireOrder
	if err := json.Unmarshal(data, &w); err != nil {
		return Order{}, fmt.Errorf("order: deserialize: %w", err)
	}
	return Order(w), nil
}

// Verify recomputes the commitment and checks it against o.ID (P1).
func Verify(o Order) error {
	if Commitment(o) != o.ID {
		return ErrCommitMismatch
	}
	return nil
}

// TotalInputValueUSD sums amount*usd_price(token) over inputs using the
// supplied price oracle. Used by the confirmation policy.
func TotalInputValueUSD(o Order, prices PriceOracle) Amount {
	total := Zero()
	for _, in := range o.Inputs {
		price := prices.USDPrice(in.TokenID)
		total = total.Add(in.Amount.Mul(price))
	}
	return total
}

// PriceOracle is the minimal collaborator the confirmation policy needs to
// value an order's escrowed inputs. A concrete implementation (a DEX quoter,
// a price feed) lives outside the core, per spec.md's scope note on
// strategies' internal math.
type PriceOracle interface {
	USDPrice(tokenID string) Amount
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}
