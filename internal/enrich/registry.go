package enrich

import (
	"sort"

	"github.com/txplain/callplain/internal/models"
)

// Registry maps dispatch keys to handlers. It is read-only once built.
type Registry struct {
	handlers map[string]Handler
}

// registrations lists every decoded call as "<section>.<lowercased method>"
var registrations = []struct {
	key     string
	handler Handler
}{
	{"balances.transfer", handleTransfer},
	{"balances.transferallowdeath", handleTransfer},
	{"balances.transferkeepalive", handleTransfer},
	{"balances.transferall", handleTransferAll},

	{"utility.batch", handleBatch},
	{"utility.batchall", handleBatch},
	{"utility.forcebatch", handleBatch},

	{"convictionVoting.delegate", handleDelegate},
	{"convictionVoting.vote", handleVote},

	{"nominationPools.bondextra", handlePoolStaking},
	{"nominationPools.bondextraother", handlePoolStaking},
	{"nominationPools.claimpayout", handlePoolStaking},
	{"nominationPools.create", handlePoolStaking},
	{"nominationPools.createwithpoolid", handlePoolStaking},
	{"nominationPools.join", handlePoolStaking},
	{"nominationPools.setmetadata", handlePoolSetMetadata},
	{"nominationPools.unbond", handlePoolUnbond},

	{"staking.bond", handleStaking},
	{"staking.bondextra", handleStaking},
	{"staking.rebond", handleStaking},
	{"staking.unbond", handleStaking},
	{"staking.withdrawunbonded", handleStaking},
	{"staking.chill", handleStaking},
	{"staking.nominate", handleNominate},

	{"proxy.proxy", handleProxy},
}

// DefaultRegistry is built at package initialization and shared process-wide
var DefaultRegistry = NewRegistry()

// NewRegistry builds a registry holding every known call handler
func NewRegistry() *Registry {
	handlers := make(map[string]Handler, len(registrations))
	for _, r := range registrations {
		handlers[r.key] = r.handler
	}
	return &Registry{handlers: handlers}
}

// ExplainTx runs the handler registered under key, or describes the call
// generically when there is none.
func (r *Registry) ExplainTx(tx *models.RawCall, key string) *models.EnrichedTx {
	if handler, ok := r.handlers[key]; ok {
		return handler(tx)
	}
	return Generic(tx)
}

// ExplainCall derives the dispatch key from the call itself
func (r *Registry) ExplainCall(tx *models.RawCall) *models.EnrichedTx {
	return r.ExplainTx(tx, tx.Key())
}

// Has reports whether a handler is registered under key
func (r *Registry) Has(key string) bool {
	_, ok := r.handlers[key]
	return ok
}

// Keys returns the registered dispatch keys in sorted order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for key := range r.handlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Generic keeps the raw call so downstream consumers can still explain it
func Generic(tx *models.RawCall) *models.EnrichedTx {
	return &models.EnrichedTx{
		Type: models.EnrichedGeneric,
		Data: map[string]interface{}{
			"method":  tx.Method,
			"section": tx.Section,
			"args":    plainValue(tx.Args),
		},
	}
}

// ExplainTx explains a call with the default registry
func ExplainTx(tx *models.RawCall, key string) *models.EnrichedTx {
	return DefaultRegistry.ExplainTx(tx, key)
}
