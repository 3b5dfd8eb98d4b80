package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresAtLeastOneChain(t *testing.T) {
	t.Setenv("CHAIN_IDS", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DiscoversChainsAndBands(t *testing.T) {
	t.Setenv("CHAIN_IDS", "EVM-97,EVM-10200")
	t.Setenv("CHAIN_EVM_97_RPC_URL", "https://rpc.example/97")
	t.Setenv("CHAIN_EVM_97_PRIVATE_KEY", "deadbeef")
	t.Setenv("CHAIN_EVM_10200_RPC_URL", "https://rpc.example/10200")
	t.Setenv("CONFIRMATION_BAND_EVM_97", "1e18,1e21,1,5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 2)
	assert.Equal(t, "EVM-97", cfg.Chains[0].ChainID)
	assert.Equal(t, "https://rpc.example/97", cfg.Chains[0].RPCURL)
	assert.Equal(t, "deadbeef", cfg.Chains[0].PrivateKey)
	assert.Empty(t, cfg.Chains[1].PrivateKey)

	band, ok := cfg.ConfirmationBands["EVM-97"]
	require.True(t, ok)
	assert.Equal(t, uint64(1), band.MinConfirmations)
	assert.Equal(t, uint64(5), band.MaxConfirmations)
}

func TestLoad_MissingRPCURLIsFatal(t *testing.T) {
	t.Setenv("CHAIN_IDS", "EVM-97")
	_, err := Load()
	assert.Error(t, err)
}
