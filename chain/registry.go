// Package chain holds one long-lived RPC client per configured chain and
// exposes the read/write surface the rest of the filler needs: receipts,
// confirmation counts, chain tip, and transaction submission.
//
// Grounded on the teacher's exec/client.go (one HTTP client, long-lived,
// built once at startup) and on the Hyperlane7683 filler reference's
// per-chain map of *ethclient.Client / *bind.TransactOpts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// DefaultRPCTimeout is the deadline dial, Receipt and ChainTip (and so
// ConfirmationsOf) apply on top of the caller's context; an earlier deadline
// on the caller's context still wins. NextNonce and SuggestGasPrice pass the
// caller's context through without adding this deadline.
const DefaultRPCTimeout = 30 * time.Second

// Config describes one chain the registry should connect to.
type Config struct {
	ChainID    string // opaque id, e.g. "EVM-97"
	RPCURL     string
	PrivateKey string // hex-encoded, no 0x prefix required
}

// ChainClient bundles the public (read) and wallet (write) surface for one
// chain. Shared read-only by all strategies; only the registry and the
// scheduler's per-chain lane touch the wallet side.
type ChainClient struct {
	ChainID string

	public *ethclient.Client
	wallet *bind.TransactOpts

	mu        sync.Mutex
	nonceNext *uint64 // not read or advanced by any method; NextNonce asks the node instead
}

// Registry is the process-wide holder of one ChainClient per chain ID. It
// never retries on behalf of callers — retry policy belongs to the pending
// queue and to strategies (spec.md §4.1).
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*ChainClient
}

// NewRegistry dials every configured chain up front and fails closed if any
// one of them cannot be reached — a missing chain client is a fatal startup
// error per spec.md §7.
func NewRegistry(ctx context.Context, configs []Config) (*Registry, error) {
	r := &Registry{clients: make(map[string]*ChainClient, len(configs))}

	for _, cfg := range configs {
		cc, err := dial(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", cfg.ChainID, err)
		}
		r.clients[cfg.ChainID] = cc
		log.Info().Str("chain", cfg.ChainID).Str("rpc", cfg.RPCURL).Msg("chain client connected")
	}

	return r, nil
}

func dial(ctx context.Context, cfg Config) (*ChainClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()

	public, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	cc := &ChainClient{ChainID: cfg.ChainID, public: public}

	if cfg.PrivateKey != "" {
		wallet, err := newTransactor(dialCtx, public, cfg.PrivateKey)
		if err != nil {
			public.Close()
			return nil, fmt.Errorf("wallet: %w", err)
		}
		cc.wallet = wallet
	}

	return cc, nil
}

// GetPublic returns the read-side client for a chain.
func (r *Registry) GetPublic(chainID string) (*ethclient.Client, error) {
	cc, err := r.get(chainID)
	if err != nil {
		return nil, err
	}
	return cc.public, nil
}

// GetWallet returns the filler's signed sender for a chain. Strategies may
// borrow it to build transactions but never hold the underlying key.
func (r *Registry) GetWallet(chainID string) (*bind.TransactOpts, error) {
	cc, err := r.get(chainID)
	if err != nil {
		return nil, err
	}
	if cc.wallet == nil {
		return nil, fmt.Errorf("chain %s: no signing key configured", chainID)
	}
	return cc.wallet, nil
}

func (r *Registry) get(chainID string) (*ChainClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cc, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %s: no client configured", chainID)
	}
	return cc, nil
}

// Receipt fetches the transaction receipt for txHash on chainID. Returns a
// transient error (never retried here) if the RPC call fails.
func (r *Registry) Receipt(ctx context.Context, chainID string, txHash [32]byte) (*types.Receipt, error) {
	public, err := r.GetPublic(chainID)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()
	return public.TransactionReceipt(callCtx, txHash)
}

// ConfirmationsOf returns the confirmation depth of receipt relative to the
// chain's current tip, counting the block containing receipt itself as the
// first confirmation (tip - block + 1). Returns 0 if the receipt has no block
// number or the tip is behind it.
func (r *Registry) ConfirmationsOf(ctx context.Context, chainID string, receipt *types.Receipt) (uint64, error) {
	tip, err := r.ChainTip(ctx, chainID)
	if err != nil {
		return 0, err
	}
	if receipt.BlockNumber == nil || tip < receipt.BlockNumber.Uint64() {
		return 0, nil
	}
	return tip - receipt.BlockNumber.Uint64() + 1, nil
}

// ConfirmationsOfTx resolves txHash to a receipt and reports its confirmation
// depth. Returns (0, nil) if the transaction has not yet been mined — not
// found is not an error here, it is simply zero confirmations (spec.md §4.3:
// the pending queue treats an unmined source tx as "still waiting").
func (r *Registry) ConfirmationsOfTx(ctx context.Context, chainID string, txHash [32]byte) (uint64, error) {
	receipt, err := r.Receipt(ctx, chainID, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return r.ConfirmationsOf(ctx, chainID, receipt)
}

// ChainTip returns the current block height of chainID.
func (r *Registry) ChainTip(ctx context.Context, chainID string) (uint64, error) {
	public, err := r.GetPublic(chainID)
	if err != nil {
		return 0, err
	}
	callCtx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()
	return public.BlockNumber(callCtx)
}

// Close shuts down every underlying RPC connection.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cc := range r.clients {
		cc.public.Close()
		log.Info().Str("chain", id).Msg("chain client closed")
	}
}
