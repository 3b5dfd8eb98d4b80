// Package statusapi is a read-only adapter to an external order-status
// indexer, consumed by strategies and tests as a collaborator interface
// (spec.md §2, "Order-Status Client").
//
// Grounded on the teacher's exec/client.go Client: a long-lived
// *http.Client built once at construction, thin method-per-endpoint
// wrappers, JSON response decoding.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

// Status is the externally-reported lifecycle state of an order as seen by
// the indexer, independent of the filler's own pending/strategy state.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusPending   Status = "pending"
	StatusFilled    Status = "filled"
	StatusExpired   Status = "expired"
	StatusSettled   Status = "settled"
)

// OrderStatus is the indexer's view of one order.
type OrderStatus struct {
	CommitmentHex string `json:"commitment"`
	Status        Status `json:"status"`
	FillTxHash    string `json:"fill_tx_hash,omitempty"`
	DestChain     string `json:"dest_chain,omitempty"`
}

// Client is a read-only HTTP client over the indexer's REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a status client against baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Status fetches the indexer's current view of commitment. Returns
// StatusUnknown (not an error) if the indexer has never seen the order.
func (c *Client) Status(ctx context.Context, commitment [32]byte) (OrderStatus, error) {
	url := fmt.Sprintf("%s/orders/%x", c.baseURL, commitment)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return OrderStatus{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OrderStatus{}, fmt.Errorf("statusapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return OrderStatus{CommitmentHex: fmt.Sprintf("%x", commitment), Status: StatusUnknown}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return OrderStatus{}, fmt.Errorf("statusapi: unexpected status %d", resp.StatusCode)
	}

	var out OrderStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Warn().Err(err).Str("commitment", fmt.Sprintf("%x", commitment)).Msg("statusapi: malformed response body")
		return OrderStatus{}, fmt.Errorf("statusapi: decode response: %w", err)
	}

	return out, nil
}
