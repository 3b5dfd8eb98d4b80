package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// newTransactor builds a chain-bound signer from a hex private key, mirroring
// the teacher's exec/client.go key-loading convention (strip an optional 0x
// prefix, derive the address from the key).
func newTransactor(ctx context.Context, public *ethclient.Client, privateKeyHex string) (*bind.TransactOpts, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	pk, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := public.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}

	return opts, nil
}

// NextNonce returns the next pending nonce for the wallet on chainID. The
// scheduler's per-destination-chain queue (concurrency 1) is what actually
// guarantees monotonicity (spec.md P3) — this is a plain read, not a
// reservation.
func (r *Registry) NextNonce(ctx context.Context, chainID string) (uint64, error) {
	cc, err := r.get(chainID)
	if err != nil {
		return 0, err
	}
	if cc.wallet == nil {
		return 0, fmt.Errorf("chain %s: no signing key configured", chainID)
	}
	return cc.public.PendingNonceAt(ctx, cc.wallet.From)
}

// SuggestGasPrice exposes the underlying client's gas price oracle so
// strategies never need their own RPC client.
func (r *Registry) SuggestGasPrice(ctx context.Context, chainID string) (*big.Int, error) {
	public, err := r.GetPublic(chainID)
	if err != nil {
		return nil, err
	}
	return public.SuggestGasPrice(ctx)
}
