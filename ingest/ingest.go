// Package ingest watches configured source chains for OrderPlaced events and
// decodes them into order.Order values.
//
// Grounded on the teacher's feeds/polymarket_ws.go connection discipline
// (connectionLoop / connect / readLoop, reconnect-with-delay on failure),
// generalized from WebSocket framing to an ethclient log subscription per
// chain, with exponential backoff in place of the teacher's fixed delay.
package ingest

import (
	"context"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/intentfiller/order"
)

// ErrMalformedOrder is returned when a log matching the OrderPlaced topic
// cannot be decoded into a complete order.Order. Decoding is total: a
// missing or mistyped field is always an error, never a silently
// zero-valued field.
var ErrMalformedOrder = errors.New("ingest: malformed OrderPlaced log")

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 2 * time.Minute
	backoffFactor  = 2.0
)

// ChainSource is one chain's ingest configuration.
type ChainSource struct {
	ChainID      string
	DestChain    string // destination chain id this source feeds into, if fixed, else ""
	GatewayAddr  common.Address
	OrderPlaced  abi.Event
	Client       *ethclient.Client
}

// Watcher subscribes to OrderPlaced logs across every configured chain and
// emits decoded orders on a single shared channel.
type Watcher struct {
	sources []ChainSource
	out     chan order.Order
}

// NewWatcher builds a watcher over the given sources. Run closes the Orders
// channel once every source's goroutine has exited (on context
// cancellation).
func NewWatcher(sources []ChainSource) *Watcher {
	return &Watcher{
		sources: sources,
		out:     make(chan order.Order, 256),
	}
}

// Orders returns the channel decoded orders are published on.
func (w *Watcher) Orders() <-chan order.Order {
	return w.out
}

// Run starts one subscription goroutine per configured chain and blocks
// until ctx is cancelled, then closes the output channel once all
// goroutines have returned.
func (w *Watcher) Run(ctx context.Context) {
	done := make(chan struct{}, len(w.sources))
	for _, src := range w.sources {
		src := src
		go func() {
			w.watchChain(ctx, src)
			done <- struct{}{}
		}()
	}
	for range w.sources {
		<-done
	}
	close(w.out)
}

// watchChain subscribes to src's OrderPlaced topic, reconnecting with
// exponential backoff on any subscription or stream error. Never silently
// drops: every failure is logged and retried until ctx is done.
func (w *Watcher) watchChain(ctx context.Context, src ChainSource) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.subscribeOnce(ctx, src); err != nil {
			log.Error().Err(err).Str("chain", src.ChainID).Dur("retry_in", backoff).Msg("order subscription failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = time.Duration(math.Min(float64(backoff)*backoffFactor, float64(maxBackoff)))
			continue
		}

		// subscribeOnce only returns nil when ctx is done.
		return
	}
}

// subscribeOnce opens a log subscription and streams until it errors or ctx
// is cancelled, returning nil only on clean shutdown. The caller's backoff is
// not reset after a subscription that streamed successfully: it keeps growing
// with every failure, up to maxBackoff.
func (w *Watcher) subscribeOnce(ctx context.Context, src ChainSource) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{src.GatewayAddr},
		Topics:    [][]common.Hash{{src.OrderPlaced.ID}},
	}

	logs := make(chan types.Log, 256)
	sub, err := src.Client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case l := <-logs:
			o, err := decodeOrderPlaced(src, l)
			if err != nil {
				log.Error().Err(err).Str("chain", src.ChainID).Str("tx", l.TxHash.Hex()).Msg("dropping malformed order log")
				continue
			}
			select {
			case w.out <- o:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// orderPlacedFields mirrors the gateway event's ABI-encoded payload. The
// exact argument layout is contract-specific; this shape covers the fields
// the filler's Order model requires (spec.md §3, §4.2).
type orderPlacedFields struct {
	User      common.Address
	DestChain string
	Deadline  *big.Int
	Nonce     *big.Int
	Fees      *big.Int
	Inputs    []tokenAmountABI
	Outputs   []outputABI
	CallData  []byte
}

type tokenAmountABI struct {
	TokenID string
	Amount  *big.Int
}

type outputABI struct {
	TokenID     string
	Amount      *big.Int
	Beneficiary common.Address
}

func decodeOrderPlaced(src ChainSource, l types.Log) (order.Order, error) {
	var fields orderPlacedFields
	if err := src.OrderPlaced.Inputs.UnpackIntoInterface(&fields, l.Data); err != nil {
		return order.Order{}, errors.Join(ErrMalformedOrder, err)
	}
	if fields.Deadline == nil || fields.Nonce == nil || fields.Fees == nil {
		return order.Order{}, ErrMalformedOrder
	}
	if len(fields.Inputs) == 0 || len(fields.Outputs) == 0 {
		return order.Order{}, ErrMalformedOrder
	}

	inputs := make([]order.TokenAmount, len(fields.Inputs))
	for i, in := range fields.Inputs {
		if in.Amount == nil {
			return order.Order{}, ErrMalformedOrder
		}
		inputs[i] = order.TokenAmount{TokenID: in.TokenID, Amount: bigIntToAmount(in.Amount)}
	}

	outputs := make([]order.Output, len(fields.Outputs))
	for i, out := range fields.Outputs {
		if out.Amount == nil {
			return order.Order{}, ErrMalformedOrder
		}
		outputs[i] = order.Output{
			TokenID:     out.TokenID,
			Amount:      bigIntToAmount(out.Amount),
			Beneficiary: addressToBytes32(out.Beneficiary),
		}
	}

	destChain := fields.DestChain
	if destChain == "" {
		destChain = src.DestChain
	}
	if destChain == "" {
		return order.Order{}, ErrMalformedOrder
	}

	return order.New(
		addressToBytes32(fields.User),
		src.ChainID,
		destChain,
		fields.Deadline.Uint64(),
		fields.Nonce.Uint64(),
		bigIntToAmount(fields.Fees),
		inputs,
		outputs,
		fields.CallData,
		l.TxHash,
	)
}

func bigIntToAmount(v *big.Int) order.Amount {
	a, err := order.AmountFromString(v.String())
	if err != nil {
		return order.Zero()
	}
	return a
}

func addressToBytes32(a common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], a.Bytes())
	return out
}
