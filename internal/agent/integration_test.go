package agent

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/txplain/callplain/internal/models"
)

// Integration test for the complete explanation pipeline against OpenAI
func TestCompleteExplanationPipeline_Integration(t *testing.T) {
	// Skip if no API key is set
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		t.Skip("Skipping integration test: OPENAI_API_KEY required")
	}

	testCases := []struct {
		name         string
		request      *models.ExplainRequest
		expectedType models.EnrichedType
		mentions     []string
	}{
		{
			name: "Polkadot transfer",
			request: &models.ExplainRequest{
				Section: "balances",
				Method:  "transferKeepAlive",
				Args:    json.RawMessage(`{"dest":{"id":"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},"value":15000000000}`),
				Chain:   "polkadot",
			},
			expectedType: models.EnrichedKnown,
			mentions:     []string{"1.5", "DOT"},
		},
		{
			name: "Kusama referendum vote",
			request: &models.ExplainRequest{
				Section: "convictionVoting",
				Method:  "vote",
				Args:    json.RawMessage(`{"poll_index":1024,"vote":{"Standard":{"vote":"0x81","balance":5000000000000}}}`),
				Chain:   "kusama",
			},
			expectedType: models.EnrichedKnown,
			mentions:     []string{"1024"},
		},
		{
			name: "Generic remark",
			request: &models.ExplainRequest{
				Section: "system",
				Method:  "remarkWithEvent",
				Args:    json.RawMessage(`{"remark":"0x68656c6c6f"}`),
				Chain:   "polkadot",
			},
			expectedType: models.EnrichedGeneric,
		},
	}

	llm, err := NewOpenAILLM(openaiKey, os.Getenv("OPENAI_MODEL"))
	if err != nil {
		t.Fatalf("Failed to initialize LLM: %v", err)
	}
	callAgent, err := NewCallplainAgent(Options{LLM: llm, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Failed to initialize agent: %v", err)
	}
	defer callAgent.Close()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			result, err := callAgent.Explain(ctx, tc.request)
			if err != nil {
				t.Fatalf("Failed to explain call: %v", err)
			}

			if result.Enriched.Type != tc.expectedType {
				t.Errorf("Expected %s enrichment, got %s", tc.expectedType, result.Enriched.Type)
			}
			if result.Summary == "" {
				t.Fatal("Expected a summary")
			}
			for _, mention := range tc.mentions {
				if !strings.Contains(result.Summary, mention) {
					t.Errorf("Expected summary to mention %q, got: %s", mention, result.Summary)
				}
			}
			t.Logf("%s: %s", tc.name, result.Summary)
		})
	}
}
