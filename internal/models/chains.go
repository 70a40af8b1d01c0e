package models

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Chain carries the display context of a relay chain or parachain
type Chain struct {
	Name     string `json:"name"`
	Token    string `json:"token"`
	Decimals int    `json:"decimals"`
	Explorer string `json:"explorer,omitempty"`
}

// SupportedChains will be populated from environment variables or defaults
var SupportedChains map[string]Chain

var chainsOnce sync.Once

// Default chains (used as fallback if no env vars are configured)
var defaultChains = map[string]Chain{
	"polkadot": {
		Name:     "Polkadot",
		Token:    "DOT",
		Decimals: 10,
		Explorer: "https://polkadot.subscan.io",
	},
	"kusama": {
		Name:     "Kusama",
		Token:    "KSM",
		Decimals: 12,
		Explorer: "https://kusama.subscan.io",
	},
	"westend": {
		Name:     "Westend",
		Token:    "WND",
		Decimals: 12,
		Explorer: "https://westend.subscan.io",
	},
	"paseo": {
		Name:     "Paseo",
		Token:    "PAS",
		Decimals: 10,
		Explorer: "https://paseo.subscan.io",
	},
}

// LoadChainsFromEnv loads chain presets from environment variables.
// Uses the pattern: TOKEN_SYMBOL_CHAIN_<NAME>, DECIMALS_CHAIN_<NAME>, EXPLORER_URL_CHAIN_<NAME>
func LoadChainsFromEnv() map[string]Chain {
	chains := make(map[string]Chain)
	for id, chain := range defaultChains {
		chains[id] = chain
	}

	for _, envVar := range os.Environ() {
		key, value, ok := strings.Cut(envVar, "=")
		if !ok || strings.HasSuffix(key, "_CHAIN_") {
			continue
		}

		switch {
		case strings.HasPrefix(key, "TOKEN_SYMBOL_CHAIN_"):
			id := strings.ToLower(strings.TrimPrefix(key, "TOKEN_SYMBOL_CHAIN_"))
			chain := chainOrNew(chains, id)
			chain.Token = value
			chains[id] = chain
		case strings.HasPrefix(key, "DECIMALS_CHAIN_"):
			decimals, err := strconv.Atoi(value)
			if err != nil || decimals < 0 || decimals > MaxDecimal {
				continue
			}
			id := strings.ToLower(strings.TrimPrefix(key, "DECIMALS_CHAIN_"))
			chain := chainOrNew(chains, id)
			chain.Decimals = decimals
			chains[id] = chain
		case strings.HasPrefix(key, "EXPLORER_URL_CHAIN_"):
			id := strings.ToLower(strings.TrimPrefix(key, "EXPLORER_URL_CHAIN_"))
			chain := chainOrNew(chains, id)
			chain.Explorer = value
			chains[id] = chain
		}
	}

	return chains
}

func chainOrNew(chains map[string]Chain, id string) Chain {
	if chain, exists := chains[id]; exists {
		return chain
	}
	return Chain{Name: strings.ToUpper(id[:1]) + id[1:]}
}

// InitializeChains initializes SupportedChains from environment variables or defaults
func InitializeChains() {
	SupportedChains = LoadChainsFromEnv()
}

// ensureChains loads the defaults when InitializeChains was never called
func ensureChains() {
	chainsOnce.Do(func() {
		if SupportedChains == nil {
			InitializeChains()
		}
	})
}

// GetChain returns the preset for a chain name, case-insensitively
func GetChain(name string) (Chain, bool) {
	ensureChains()
	chain, exists := SupportedChains[strings.ToLower(strings.TrimSpace(name))]
	return chain, exists
}

// ListChainIDs returns the configured chain identifiers in sorted order
func ListChainIDs() []string {
	ensureChains()

	ids := make([]string, 0, len(SupportedChains))
	for id := range SupportedChains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
