package tools

import (
	"context"
	"fmt"

	"github.com/txplain/callplain/internal/knowledge"
)

// KnowledgeContext attaches the catalog entry of calls no handler decodes
type KnowledgeContext struct {
	kb *knowledge.KnowledgeBase
}

// NewKnowledgeContext creates a processor over kb, or the embedded catalog when nil
func NewKnowledgeContext(kb *knowledge.KnowledgeBase) *KnowledgeContext {
	if kb == nil {
		kb = knowledge.Default()
	}
	return &KnowledgeContext{kb: kb}
}

// Name returns the processor name
func (k *KnowledgeContext) Name() string {
	return "knowledge_context"
}

// Description returns the processor description
func (k *KnowledgeContext) Description() string {
	return "Looks up the catalog description of calls that have no dedicated handler"
}

// Dependencies returns the tools this processor depends on
func (k *KnowledgeContext) Dependencies() []string {
	return []string{"call_enricher"}
}

// Process stores the catalog entry for generic calls. Known calls are skipped
// since their decoded data already says more than the catalog.
func (k *KnowledgeContext) Process(ctx context.Context, baggage map[string]interface{}) error {
	call, err := callFromBaggage(k.Name(), baggage)
	if err != nil {
		return err
	}
	enriched, err := enrichedFromBaggage(k.Name(), baggage)
	if err != nil {
		return err
	}
	if enriched.IsKnown() {
		return nil
	}

	baggage[BaggageKnowledge] = k.kb.Lookup(call.CatalogKey())
	AddContextProvider(baggage, k)
	return nil
}

// GetPromptContext renders the catalog entry
func (k *KnowledgeContext) GetPromptContext(ctx context.Context, baggage map[string]interface{}) string {
	entry, ok := baggage[BaggageKnowledge].(string)
	if !ok || entry == "" {
		return ""
	}
	return fmt.Sprintf("### Call reference\n%s\n", entry)
}
