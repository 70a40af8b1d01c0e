package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/txplain/callplain/internal/enrich"
	"github.com/txplain/callplain/internal/models"
)

// CallEnricher decodes the raw call into an EnrichedTx
type CallEnricher struct {
	registry *enrich.Registry
}

// NewCallEnricher creates an enricher over registry, or the default registry when nil
func NewCallEnricher(registry *enrich.Registry) *CallEnricher {
	if registry == nil {
		registry = enrich.DefaultRegistry
	}
	return &CallEnricher{registry: registry}
}

// Name returns the processor name
func (c *CallEnricher) Name() string {
	return "call_enricher"
}

// Description returns the processor description
func (c *CallEnricher) Description() string {
	return "Decodes the call with its registered handler, or describes it generically"
}

// Dependencies returns the tools this processor depends on
func (c *CallEnricher) Dependencies() []string {
	return []string{}
}

// Process stores the enriched call and registers itself as a prompt context provider
func (c *CallEnricher) Process(ctx context.Context, baggage map[string]interface{}) error {
	call, err := callFromBaggage(c.Name(), baggage)
	if err != nil {
		return err
	}

	baggage[BaggageEnriched] = c.registry.ExplainCall(call)
	AddContextProvider(baggage, c)
	return nil
}

// GetPromptContext renders the call and its decoded fields
func (c *CallEnricher) GetPromptContext(ctx context.Context, baggage map[string]interface{}) string {
	call, ok := baggage[BaggageCall].(*models.RawCall)
	if !ok {
		return ""
	}
	enriched, ok := baggage[BaggageEnriched].(*models.EnrichedTx)
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Call\n- Call: %s.%s\n", call.Section, call.Method)
	if call.Token != "" {
		fmt.Fprintf(&b, "- Token: %s (%d decimals)\n", call.Token, call.Decimal)
	}
	fmt.Fprintf(&b, "- Decoded: %s\n", enriched.Type)
	if enriched.SummaryHint != "" {
		fmt.Fprintf(&b, "- Kind: %s\n", enriched.SummaryHint)
	}

	if len(enriched.Data) > 0 {
		b.WriteString("\n### Data\n")
		keys := make([]string, 0, len(enriched.Data))
		for key := range enriched.Data {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, FormatPromptValue(enriched.Data[key]))
		}
	}

	return b.String()
}

// FormatPromptValue renders a data value for prompts and terminal output.
// Amounts get digit grouping; structured values are written as JSON.
func FormatPromptValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "none"
	case string:
		return v
	case float64:
		return humanize.CommafWithDigits(v, enrich.DisplayPrecision)
	case int:
		return humanize.Comma(int64(v))
	case []string:
		if len(v) == 0 {
			return "none"
		}
		return strings.Join(v, ", ")
	default:
		return models.ToJSON(v)
	}
}
