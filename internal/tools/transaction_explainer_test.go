package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/txplain/callplain/internal/enrich"
	"github.com/txplain/callplain/internal/knowledge"
	"github.com/txplain/callplain/internal/models"
)

const aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func runPipeline(t *testing.T, llm llms.Model, section, method, args, token string, decimal int) (map[string]interface{}, error) {
	t.Helper()

	search := NewKnowledgeSearchService(nil, zerolog.Nop())
	explainer := NewTransactionExplainer(llm, search, fastRetryConfig(0), zerolog.Nop())
	explainer.SetVerbose(true)
	pipeline, err := NewExplanationPipeline(nil, nil, explainer, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"call_enricher", "knowledge_context", "prompt_rules", "transaction_explainer"}, pipeline.GetExecutionOrder())

	call, err := models.ParseRawCall(section, method, []byte(args), token, decimal)
	require.NoError(t, err)

	baggage := map[string]interface{}{BaggageCall: call}
	return baggage, pipeline.Execute(context.Background(), baggage)
}

func TestExplanationPipeline_KnownCall(t *testing.T) {
	llm := &stubLLM{responses: []*llms.ContentResponse{textResponse(` "You are sending 1.5 DOT to 5Grwva...GKutQY." `)}}

	baggage, err := runPipeline(t, llm, "balances", "transferKeepAlive",
		`{"dest":{"id":"`+aliceAddress+`"},"value":15000000000}`, "DOT", 10)
	require.NoError(t, err)

	result, ok := baggage[BaggageExplanation].(*models.ExplanationResult)
	require.True(t, ok)
	assert.Equal(t, "balances.transferkeepalive", result.Key)
	assert.Equal(t, "You are sending 1.5 DOT to 5Grwva...GKutQY.", result.Summary)
	assert.Equal(t, models.EnrichedKnown, result.Enriched.Type)
	assert.Equal(t, knowledge.RulesFor("balances"), result.Rules)
	assert.Empty(t, result.Knowledge, "known calls skip the catalog")
	assert.False(t, result.Timestamp.IsZero())

	// The prompt carries the decoded data and the section rules
	assert.Contains(t, result.Prompt, "- Call: balances.transferKeepAlive")
	assert.Contains(t, result.Prompt, "- amount: 1.5")
	assert.Contains(t, result.Prompt, "- to: 5Grwva...GKutQY")
	assert.Contains(t, result.Prompt, "You are sending [amount] [token] to [to].")
	assert.Equal(t, 1, llm.callCount())
}

func TestExplanationPipeline_GenericCallUsesCatalog(t *testing.T) {
	llm := &stubLLM{responses: []*llms.ContentResponse{textResponse("You are leaving an on-chain remark.")}}

	baggage, err := runPipeline(t, llm, "system", "remarkWithEvent", `{"remark":"0x6869"}`, "DOT", 10)
	require.NoError(t, err)

	result := baggage[BaggageExplanation].(*models.ExplanationResult)
	assert.Equal(t, models.EnrichedGeneric, result.Enriched.Type)
	assert.Equal(t, knowledge.Lookup("system.remarkWithEvent"), result.Knowledge)
	assert.NotEqual(t, knowledge.NoInformation, result.Knowledge)
	assert.Empty(t, result.Rules)
	assert.Contains(t, result.Prompt, "### Call reference")
	assert.Contains(t, result.Prompt, "remark_with_event")
}

func TestExplanationPipeline_UncataloguedCall(t *testing.T) {
	llm := &stubLLM{responses: []*llms.ContentResponse{textResponse("You are calling a custom pallet.")}}

	baggage, err := runPipeline(t, llm, "customPallet", "doThing", `{}`, "DOT", 10)
	require.NoError(t, err)

	result := baggage[BaggageExplanation].(*models.ExplanationResult)
	assert.Equal(t, knowledge.NoInformation, result.Knowledge)
}

func TestExplanationPipeline_FunctionCalls(t *testing.T) {
	llm := &stubLLM{responses: []*llms.ContentResponse{
		toolCallResponse("call-1", "lookup_call", `{"key":"balances.transferKeepAlive"}`),
		textResponse("You are batching a token transfer."),
	}}

	baggage, err := runPipeline(t, llm, "utility", "batchAll",
		`{"calls":[{"section":"balances","method":"transferKeepAlive"}]}`, "DOT", 10)
	require.NoError(t, err)

	result := baggage[BaggageExplanation].(*models.ExplanationResult)
	assert.Equal(t, "You are batching a token transfer.", result.Summary)
	require.Equal(t, 2, llm.callCount())

	// Second round: prompt, assistant tool call, tool response, final instruction
	second := llm.calls[1]
	require.Len(t, second, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, second[1].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, second[2].Role)
	response, ok := second[2].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call-1", response.ToolCallID)
	assert.Contains(t, response.Content, "transfer_keep_alive")
}

func TestExplanationPipeline_BadFunctionArguments(t *testing.T) {
	llm := &stubLLM{responses: []*llms.ContentResponse{
		toolCallResponse("call-1", "search_calls", `not json`),
		textResponse("You are staking."),
	}}

	baggage, err := runPipeline(t, llm, "staking", "bond", `{"value":1}`, "DOT", 10)
	require.NoError(t, err)
	assert.Equal(t, "You are staking.", baggage[BaggageExplanation].(*models.ExplanationResult).Summary)

	response := llm.calls[1][2].Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, response.Content, `"error"`)
}

func TestExplanationPipeline_WithoutLLM(t *testing.T) {
	baggage, err := runPipeline(t, nil, "staking", "nominate", `{"targets":["`+aliceAddress+`"]}`, "DOT", 10)
	require.NoError(t, err)

	result := baggage[BaggageExplanation].(*models.ExplanationResult)
	assert.Empty(t, result.Summary)
	assert.Equal(t, []string{"5Grwva...GKutQY"}, result.Enriched.Data["validators"])
	assert.NotEmpty(t, result.Prompt)
}

func TestExplanationPipeline_LLMFailure(t *testing.T) {
	llm := &stubLLM{errs: []error{errors.New("invalid api key")}}

	_, err := runPipeline(t, llm, "balances", "transfer", `{"value":1}`, "DOT", 10)
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "transaction_explainer", toolErr.Tool)
	assert.Equal(t, CodeLLMFailure, toolErr.Code)
}

func TestExplanationPipeline_EmptyAnswer(t *testing.T) {
	llm := &stubLLM{responses: []*llms.ContentResponse{textResponse("   ")}}

	_, err := runPipeline(t, llm, "balances", "transfer", `{"value":1}`, "DOT", 10)
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeEmptyResponse, toolErr.Code)
}

func TestProcessors_MissingCall(t *testing.T) {
	processors := []BaggageProcessor{
		NewCallEnricher(enrich.NewRegistry()),
		NewKnowledgeContext(nil),
		NewPromptRules(),
		NewTransactionExplainer(nil, nil, fastRetryConfig(0), zerolog.Nop()),
	}
	for _, processor := range processors {
		err := processor.Process(context.Background(), map[string]interface{}{})
		var toolErr *ToolError
		require.True(t, errors.As(err, &toolErr), processor.Name())
		assert.Equal(t, CodeMissingBaggage, toolErr.Code)
	}
}

func TestFormatPromptValue(t *testing.T) {
	tests := []struct {
		value    interface{}
		expected string
	}{
		{nil, "none"},
		{"Aye", "Aye"},
		{1234567.5, "1,234,567.5"},
		{0.000001, "0.000001"},
		{3, "3"},
		{12000, "12,000"},
		{[]string{}, "none"},
		{[]string{"a", "b"}, "a, b"},
		{map[string]interface{}{"x": 1}, `{"x":1}`},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, FormatPromptValue(test.value), "FormatPromptValue(%v)", test.value)
	}
}

func TestCleanSummary(t *testing.T) {
	assert.Equal(t, "You vote.", cleanSummary("  You vote.\n"))
	assert.Equal(t, "You vote.", cleanSummary(`"You vote."`))
	assert.Equal(t, `"`, cleanSummary(`"`))
	assert.Equal(t, "", cleanSummary(""))
}
