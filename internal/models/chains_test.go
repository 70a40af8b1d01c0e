package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetChain_Defaults(t *testing.T) {
	chain, ok := GetChain(" Kusama ")
	assert.True(t, ok)
	assert.Equal(t, "KSM", chain.Token)
	assert.Equal(t, 12, chain.Decimals)

	_, ok = GetChain("ethereum")
	assert.False(t, ok)

	ids := ListChainIDs()
	assert.Contains(t, ids, "polkadot")
	assert.IsIncreasing(t, ids)
}

func TestLoadChainsFromEnv(t *testing.T) {
	t.Setenv("TOKEN_SYMBOL_CHAIN_ASTAR", "ASTR")
	t.Setenv("DECIMALS_CHAIN_ASTAR", "18")
	t.Setenv("EXPLORER_URL_CHAIN_ASTAR", "https://astar.subscan.io")
	t.Setenv("TOKEN_SYMBOL_CHAIN_POLKADOT", "DOT2")
	t.Setenv("DECIMALS_CHAIN_KUSAMA", "not-a-number")
	t.Setenv("DECIMALS_CHAIN_WESTEND", "-1")
	t.Setenv("DECIMALS_CHAIN_PASEO", "4294967284")

	chains := LoadChainsFromEnv()

	astar := chains["astar"]
	assert.Equal(t, "Astar", astar.Name)
	assert.Equal(t, "ASTR", astar.Token)
	assert.Equal(t, 18, astar.Decimals)
	assert.Equal(t, "https://astar.subscan.io", astar.Explorer)

	assert.Equal(t, "DOT2", chains["polkadot"].Token)
	assert.Equal(t, 10, chains["polkadot"].Decimals)
	assert.Equal(t, 12, chains["kusama"].Decimals)
	assert.Equal(t, 12, chains["westend"].Decimals)
	assert.Equal(t, 10, chains["paseo"].Decimals)

	// Defaults are copied, not mutated
	assert.Equal(t, "DOT", defaultChains["polkadot"].Token)
}
