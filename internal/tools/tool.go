package tools

import (
	"context"

	"github.com/txplain/callplain/internal/models"
)

// BaggageProcessor is one step of the explanation pipeline. Processors share
// state through the baggage map and run after every processor they depend on.
type BaggageProcessor interface {
	Name() string
	Description() string
	Dependencies() []string
	Process(ctx context.Context, baggage map[string]interface{}) error
}

// ContextProvider allows processors to provide additional context for LLM prompts
type ContextProvider interface {
	GetPromptContext(ctx context.Context, baggage map[string]interface{}) string
}

// Baggage keys shared by the processors
const (
	BaggageCall             = "call"              // *models.RawCall
	BaggageEnriched         = "enriched"          // *models.EnrichedTx
	BaggageKnowledge        = "knowledge"         // string, catalog entry for generic calls
	BaggageRules            = "rules"             // string, prompt template for the section
	BaggageContextProviders = "context_providers" // []ContextProvider
	BaggageExplanation      = "explanation"       // *models.ExplanationResult
)

// ToolError represents an error that occurred during processor execution
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e ToolError) Error() string {
	return e.Message
}

// NewToolError creates a new tool error
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Error codes carried by ToolError
const (
	CodeMissingBaggage = "missing_baggage"
	CodeLLMFailure     = "llm_failure"
	CodeEmptyResponse  = "empty_response"
)

// callFromBaggage returns the raw call every processor starts from
func callFromBaggage(tool string, baggage map[string]interface{}) (*models.RawCall, error) {
	call, ok := baggage[BaggageCall].(*models.RawCall)
	if !ok || call == nil {
		return nil, NewToolError(tool, "no call in baggage", CodeMissingBaggage)
	}
	return call, nil
}

func enrichedFromBaggage(tool string, baggage map[string]interface{}) (*models.EnrichedTx, error) {
	enriched, ok := baggage[BaggageEnriched].(*models.EnrichedTx)
	if !ok || enriched == nil {
		return nil, NewToolError(tool, "no enriched call in baggage", CodeMissingBaggage)
	}
	return enriched, nil
}

// AddContextProvider registers a provider for the explainer's prompt
func AddContextProvider(baggage map[string]interface{}, provider ContextProvider) {
	providers, _ := baggage[BaggageContextProviders].([]ContextProvider)
	baggage[BaggageContextProviders] = append(providers, provider)
}
