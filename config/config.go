// Package config is the filler's env-var driven configuration layer.
//
// Grounded on internal/config/config.go's Load()/getEnv* helper family
// (string/bool/int/duration/decimal accessors with defaults); extended with
// the chain registry and confirmation-policy table sections. There are no
// strategy roster settings: strategies are registered in code.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/intentfiller/chain"
	"github.com/web3guy0/intentfiller/pending"
)

// Config is everything the filler needs to start a run.
type Config struct {
	Debug bool

	Chains []chain.Config

	// Confirmation policy, keyed by source chain id.
	ConfirmationBands map[string]pending.Band
	MaxRechecks       int
	RecheckDelay      time.Duration

	MaxConcurrentOrders int64
	LaneBufferSize      int
	DrainDeadline       time.Duration

	MinProfitScore decimal.Decimal

	CoprocessorWSURL string
	// CoprocessorSeedURI is the secret URI (raw seed, mnemonic, or
	// mnemonic//derivation-path) the filler derives its Sr25519 coprocessor
	// signing key from (spec.md §4.6).
	CoprocessorSeedURI string
	BidStoreDSN        string
	StatusAPIURL       string
}

// Load reads configuration from the environment, applying the same
// default-if-unset discipline as the teacher's config.Load.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		MaxRechecks:  getEnvInt("PENDING_MAX_RECHECKS", 20),
		RecheckDelay: getEnvDuration("PENDING_RECHECK_DELAY", 15*time.Second),

		MaxConcurrentOrders: int64(getEnvInt("MAX_CONCURRENT_ORDERS", 16)),
		LaneBufferSize:      getEnvInt("LANE_BUFFER_SIZE", 64),
		DrainDeadline:       getEnvDuration("DRAIN_DEADLINE", 30*time.Second),

		MinProfitScore: getEnvDecimal("MIN_PROFIT_SCORE", decimal.Zero),

		CoprocessorWSURL:   getEnv("COPROCESSOR_WS_URL", "wss://coprocessor.local/ws"),
		CoprocessorSeedURI: os.Getenv("COPROCESSOR_SEED_URI"),
		BidStoreDSN:        getEnv("BID_STORE_DSN", "data/bids.db"),
		StatusAPIURL:       getEnv("STATUS_API_URL", "https://status.local"),
	}

	chains, err := loadChains()
	if err != nil {
		return nil, err
	}
	cfg.Chains = chains

	bands, err := loadBands()
	if err != nil {
		return nil, err
	}
	cfg.ConfirmationBands = bands

	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("config: at least one CHAIN_<ID>_RPC_URL must be set")
	}

	return cfg, nil
}

// loadChains discovers every CHAIN_<ID>_RPC_URL env var and builds a
// chain.Config for it, pairing it with CHAIN_<ID>_PRIVATE_KEY if present.
// Chain ids are the <ID> portion, read from CHAIN_IDS (comma-separated) to
// keep discovery deterministic rather than scanning os.Environ().
func loadChains() ([]chain.Config, error) {
	idsRaw := os.Getenv("CHAIN_IDS")
	if idsRaw == "" {
		return nil, nil
	}

	var configs []chain.Config
	for _, id := range strings.Split(idsRaw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		envKey := strings.ToUpper(strings.ReplaceAll(id, "-", "_"))
		rpcURL := os.Getenv(fmt.Sprintf("CHAIN_%s_RPC_URL", envKey))
		if rpcURL == "" {
			return nil, fmt.Errorf("config: CHAIN_%s_RPC_URL is required (listed in CHAIN_IDS)", envKey)
		}
		privateKey := os.Getenv(fmt.Sprintf("CHAIN_%s_PRIVATE_KEY", envKey))
		configs = append(configs, chain.Config{
			ChainID:    id,
			RPCURL:     rpcURL,
			PrivateKey: privateKey,
		})
	}
	return configs, nil
}

// loadBands builds the per-chain confirmation policy table from
// CONFIRMATION_BAND_<ID>="min_amount,max_amount,min_conf,max_conf".
func loadBands() (map[string]pending.Band, error) {
	idsRaw := os.Getenv("CHAIN_IDS")
	bands := make(map[string]pending.Band)
	if idsRaw == "" {
		return bands, nil
	}

	for _, id := range strings.Split(idsRaw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		envKey := strings.ToUpper(strings.ReplaceAll(id, "-", "_"))
		raw := os.Getenv(fmt.Sprintf("CONFIRMATION_BAND_%s", envKey))
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("config: CONFIRMATION_BAND_%s must be \"min_amount,max_amount,min_conf,max_conf\"", envKey)
		}
		minAmount, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("config: CONFIRMATION_BAND_%s min_amount: %w", envKey, err)
		}
		maxAmount, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("config: CONFIRMATION_BAND_%s max_amount: %w", envKey, err)
		}
		minConf, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: CONFIRMATION_BAND_%s min_conf: %w", envKey, err)
		}
		maxConf, err := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: CONFIRMATION_BAND_%s max_conf: %w", envKey, err)
		}
		bands[id] = pending.Band{
			MinAmount:        minAmount,
			MaxAmount:        maxAmount,
			MinConfirmations: minConf,
			MaxConfirmations: maxConf,
		}
	}
	return bands, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
