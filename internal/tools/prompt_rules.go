package tools

import (
	"context"
	"fmt"

	"github.com/txplain/callplain/internal/knowledge"
)

// PromptRules attaches the phrasing template for the call's section
type PromptRules struct{}

// NewPromptRules creates the processor
func NewPromptRules() *PromptRules {
	return &PromptRules{}
}

// Name returns the processor name
func (p *PromptRules) Name() string {
	return "prompt_rules"
}

// Description returns the processor description
func (p *PromptRules) Description() string {
	return "Selects the phrasing rules for the call's section"
}

// Dependencies returns the tools this processor depends on
func (p *PromptRules) Dependencies() []string {
	return []string{"call_enricher"}
}

// Process stores the section template, if the section has one
func (p *PromptRules) Process(ctx context.Context, baggage map[string]interface{}) error {
	call, err := callFromBaggage(p.Name(), baggage)
	if err != nil {
		return err
	}

	rules := knowledge.RulesFor(call.Section)
	if rules == "" {
		return nil
	}
	baggage[BaggageRules] = rules
	AddContextProvider(baggage, p)
	return nil
}

// GetPromptContext renders the template
func (p *PromptRules) GetPromptContext(ctx context.Context, baggage map[string]interface{}) string {
	rules, ok := baggage[BaggageRules].(string)
	if !ok || rules == "" {
		return ""
	}
	return fmt.Sprintf("### Phrasing rules\n%s\n", rules)
}
