package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/txplain/callplain/internal/enrich"
	"github.com/txplain/callplain/internal/knowledge"
	"github.com/txplain/callplain/internal/models"
)

const tracerName = "github.com/txplain/callplain/internal/tools"

// TransactionExplainer turns the enriched call and the collected prompt context
// into a one or two sentence explanation. Without an LLM it still produces a
// result, with an empty summary.
type TransactionExplainer struct {
	llm     llms.Model
	search  *KnowledgeSearchService
	retry   LLMRetryConfig
	logger  zerolog.Logger
	verbose bool
}

// NewTransactionExplainer creates an explainer. llm may be nil.
func NewTransactionExplainer(llm llms.Model, search *KnowledgeSearchService, retry LLMRetryConfig, logger zerolog.Logger) *TransactionExplainer {
	return &TransactionExplainer{
		llm:    llm,
		search: search,
		retry:  retry,
		logger: logger.With().Str("component", "transaction_explainer").Logger(),
	}
}

// SetVerbose keeps the generated prompt in the result
func (t *TransactionExplainer) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// Name returns the processor name
func (t *TransactionExplainer) Name() string {
	return "transaction_explainer"
}

// Description returns the processor description
func (t *TransactionExplainer) Description() string {
	return "Generates a human-readable explanation of the call from the collected context"
}

// Dependencies returns the tools this processor depends on
func (t *TransactionExplainer) Dependencies() []string {
	return []string{"call_enricher", "knowledge_context", "prompt_rules"}
}

// Process assembles the prompt and asks the LLM for the summary
func (t *TransactionExplainer) Process(ctx context.Context, baggage map[string]interface{}) error {
	call, err := callFromBaggage(t.Name(), baggage)
	if err != nil {
		return err
	}
	enriched, err := enrichedFromBaggage(t.Name(), baggage)
	if err != nil {
		return err
	}

	var contexts []string
	if providers, ok := baggage[BaggageContextProviders].([]ContextProvider); ok {
		for _, provider := range providers {
			if text := provider.GetPromptContext(ctx, baggage); text != "" {
				contexts = append(contexts, text)
			}
		}
	}

	prompt := t.buildPrompt(contexts)
	t.logger.Debug().Str("call", call.Key()).Int("contexts", len(contexts)).Msg("prompt assembled")

	result := &models.ExplanationResult{
		Key:       call.Key(),
		Section:   call.Section,
		Method:    call.Method,
		Enriched:  enriched,
		Timestamp: time.Now().UTC(),
	}
	result.Knowledge, _ = baggage[BaggageKnowledge].(string)
	result.Rules, _ = baggage[BaggageRules].(string)
	if t.verbose {
		result.Prompt = prompt
	}

	if t.llm != nil {
		summary, err := t.generateExplanation(ctx, call, prompt)
		if err != nil {
			return err
		}
		result.Summary = summary
	}

	baggage[BaggageExplanation] = result
	return nil
}

// generateExplanation runs the LLM, answering catalog function calls once
func (t *TransactionExplainer) generateExplanation(ctx context.Context, call *models.RawCall, prompt string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "callplain.llm")
	span.SetAttributes(attribute.String("callplain.call", call.Key()))
	defer span.End()

	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}

	var options []llms.CallOption
	if t.search != nil {
		options = append(options, llms.WithTools(t.search.GetLangChainGoTools()), llms.WithToolChoice("auto"))
	}

	response, err := CallLLMWithCustomRetry(ctx, t.llm, messages, t.retry, t.logger, options...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		return "", NewToolError(t.Name(), fmt.Sprintf("LLM call failed: %v", err), CodeLLMFailure)
	}
	if response == nil || len(response.Choices) == 0 {
		span.SetStatus(codes.Error, "empty response")
		return "", NewToolError(t.Name(), "no response from LLM", CodeEmptyResponse)
	}

	choice := response.Choices[0]
	if len(choice.ToolCalls) > 0 && t.search != nil {
		span.SetAttributes(attribute.Int("callplain.tool_calls", len(choice.ToolCalls)))
		messages = append(messages, t.toolCallMessages(ctx, choice)...)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
			"Now write the final explanation using the catalog results and the context above."))

		response, err = CallLLMWithCustomRetry(ctx, t.llm, messages, t.retry, t.logger)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "llm call failed")
			return "", NewToolError(t.Name(), fmt.Sprintf("LLM call failed after function calls: %v", err), CodeLLMFailure)
		}
		if response == nil || len(response.Choices) == 0 {
			span.SetStatus(codes.Error, "empty response")
			return "", NewToolError(t.Name(), "no response from LLM", CodeEmptyResponse)
		}
		choice = response.Choices[0]
	}

	summary := cleanSummary(choice.Content)
	if summary == "" {
		span.SetStatus(codes.Error, "empty response")
		return "", NewToolError(t.Name(), "LLM returned an empty explanation", CodeEmptyResponse)
	}
	return summary, nil
}

// toolCallMessages echoes the assistant's tool calls and appends one response per call.
// A failing lookup is reported to the LLM instead of failing the explanation.
func (t *TransactionExplainer) toolCallMessages(ctx context.Context, choice *llms.ContentChoice) []llms.MessageContent {
	assistantParts := []llms.ContentPart{}
	if choice.Content != "" {
		assistantParts = append(assistantParts, llms.TextPart(choice.Content))
	}
	for _, toolCall := range choice.ToolCalls {
		assistantParts = append(assistantParts, toolCall)
	}
	messages := []llms.MessageContent{{Role: llms.ChatMessageTypeAI, Parts: assistantParts}}

	for _, toolCall := range choice.ToolCalls {
		var result interface{}
		var args map[string]interface{}
		var err error

		if toolCall.FunctionCall == nil {
			err = fmt.Errorf("tool call %s has no function", toolCall.ID)
		} else if err = json.Unmarshal([]byte(toolCall.FunctionCall.Arguments), &args); err == nil {
			result, err = t.search.HandleFunctionCall(ctx, toolCall.FunctionCall.Name, args)
		}
		if err != nil {
			t.logger.Debug().Err(err).Str("tool_call", toolCall.ID).Msg("function call failed, continuing")
			result = map[string]interface{}{"results": []interface{}{}, "found": 0, "error": err.Error()}
		}

		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: toolCall.ID,
					Name:       functionName(toolCall),
					Content:    models.ToJSON(result),
				},
			},
		})
	}
	return messages
}

func functionName(toolCall llms.ToolCall) string {
	if toolCall.FunctionCall == nil {
		return ""
	}
	return toolCall.FunctionCall.Name
}

// cleanSummary strips whitespace and the quotes models like to wrap answers in
func cleanSummary(content string) string {
	summary := strings.TrimSpace(content)
	if len(summary) >= 2 && strings.HasPrefix(summary, `"`) && strings.HasSuffix(summary, `"`) {
		summary = strings.TrimSpace(summary[1 : len(summary)-1])
	}
	return summary
}

func (t *TransactionExplainer) buildPrompt(contexts []string) string {
	var b strings.Builder
	b.WriteString(`You explain Polkadot SDK transactions to the person about to sign them.

Write one or two plain sentences in the second person ("You are ...") describing what the call does.
- Use the decoded data fields as given. Amounts are already converted to whole tokens; do not rescale them.
- Addresses are already shortened; repeat them as they are.
- If phrasing rules are given below, follow their templates and branches exactly, filling the bracketed placeholders.
- If the call was not decoded, explain it from the call reference and its arguments. Look up nested calls with the catalog functions when needed.
- Do not speculate about fees, risks or outcomes that the data does not show.
- Answer with the explanation only, no headings and no quotes.

`)
	for _, text := range contexts {
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// NewExplanationPipeline wires the enricher, the catalog and rule processors and
// the explainer into one pipeline
func NewExplanationPipeline(registry *enrich.Registry, kb *knowledge.KnowledgeBase, explainer *TransactionExplainer, logger zerolog.Logger) (*BaggagePipeline, error) {
	pipeline := NewBaggagePipeline(logger)
	processors := []BaggageProcessor{
		NewCallEnricher(registry),
		NewKnowledgeContext(kb),
		NewPromptRules(),
		explainer,
	}
	for _, processor := range processors {
		if err := pipeline.AddProcessor(processor); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", processor.Name(), err)
		}
	}
	return pipeline, nil
}
