package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/txplain/callplain/internal/knowledge"
	"github.com/txplain/callplain/internal/models"
	cptools "github.com/txplain/callplain/internal/tools"
)

// countingLLM answers every prompt with the same text
type countingLLM struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
}

func (c *countingLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: c.answer}}}, nil
}

func (c *countingLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c, prompt, options...)
}

func (c *countingLLM) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var noRetry = cptools.LLMRetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1, TimeoutPerRetry: time.Second}

func transferRequest(chain string) *models.ExplainRequest {
	return &models.ExplainRequest{
		Section: "balances",
		Method:  "transferKeepAlive",
		Args:    json.RawMessage(`{"dest":{"id":"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},"value":15000000000}`),
		Chain:   chain,
	}
}

func newAgent(t *testing.T, opts Options) *CallplainAgent {
	t.Helper()
	opts.Logger = zerolog.Nop()
	if opts.Retry == (cptools.LLMRetryConfig{}) {
		opts.Retry = noRetry
	}
	a, err := NewCallplainAgent(opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCallplainAgent_Enrich(t *testing.T) {
	a := newAgent(t, Options{})
	assert.False(t, a.HasLLM())

	enriched, err := a.Enrich(transferRequest("polkadot"))
	require.NoError(t, err)
	assert.Equal(t, models.EnrichedKnown, enriched.Type)
	assert.Equal(t, 1.5, enriched.Data["amount"])
	assert.Equal(t, "DOT", enriched.Data["token"])

	// Explicit token and decimals win over the chain preset
	decimals := 12
	request := transferRequest("polkadot")
	request.Token = "TEST"
	request.Decimal = &decimals
	enriched, err = a.Enrich(request)
	require.NoError(t, err)
	assert.Equal(t, 0.015, enriched.Data["amount"])
	assert.Equal(t, "TEST", enriched.Data["token"])
}

func TestCallplainAgent_InvalidRequests(t *testing.T) {
	a := newAgent(t, Options{})

	hugeDecimal := transferRequest("polkadot")
	twentyMillion := 20000000
	hugeDecimal.Decimal = &twentyMillion

	tests := []struct {
		name    string
		request *models.ExplainRequest
	}{
		{"nil", nil},
		{"no section", &models.ExplainRequest{Method: "transfer"}},
		{"no method", &models.ExplainRequest{Section: "balances"}},
		{"unknown chain", transferRequest("ethereum")},
		{"bad args", &models.ExplainRequest{Section: "balances", Method: "transfer", Args: json.RawMessage(`{"value":`)}},
		{"decimal above ceiling", hugeDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Enrich(tt.request)
			assert.ErrorIs(t, err, ErrInvalidRequest)

			_, err = a.Explain(context.Background(), tt.request)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCallplainAgent_ExplainWithoutLLM(t *testing.T) {
	a := newAgent(t, Options{})

	result, err := a.Explain(context.Background(), transferRequest("polkadot"))
	require.NoError(t, err)
	assert.Empty(t, result.Summary)
	assert.False(t, result.Cached)
	assert.Len(t, result.Fingerprint, 64)
	assert.Equal(t, "balances.transferkeepalive", result.Key)
	assert.Equal(t, knowledge.RulesFor("balances"), result.Rules)
}

func TestCallplainAgent_ExplainCachesInMemory(t *testing.T) {
	llm := &countingLLM{answer: "You are sending 1.5 DOT to 5Grwva...GKutQY."}
	cache, err := cptools.NewMemoryCache(100, nil)
	require.NoError(t, err)

	a := newAgent(t, Options{LLM: llm, Cache: cache})

	first, err := a.Explain(context.Background(), transferRequest("polkadot"))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "You are sending 1.5 DOT to 5Grwva...GKutQY.", first.Summary)

	second, err := a.Explain(context.Background(), transferRequest("polkadot"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Enriched.Type, second.Enriched.Type)
	assert.Equal(t, 1, llm.count())

	// A different chain changes the token and therefore the fingerprint
	third, err := a.Explain(context.Background(), transferRequest("kusama"))
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, llm.count())
}

func TestCallplainAgent_ExplainCachesInRedis(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	llm := &countingLLM{answer: "You are sending 1.5 DOT."}

	a := newAgent(t, Options{
		LLM:      llm,
		Cache:    cptools.NewRedisCache(client, "callplain", nil),
		Locker:   cptools.NewRedisLocker(client, time.Minute, cptools.DefaultLockTries),
		CacheTTL: time.Hour,
	})

	var wg sync.WaitGroup
	results := make([]*models.ExplanationResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := a.Explain(context.Background(), transferRequest("polkadot"))
			if assert.NoError(t, err) {
				results[i] = result
			}
		}(i)
	}
	wg.Wait()

	// The lock lets only the first request reach the LLM
	assert.Equal(t, 1, llm.count())
	for _, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, "You are sending 1.5 DOT.", result.Summary)
	}

	key := "callplain:" + cptools.ExplanationKey(results[0].Fingerprint)
	assert.True(t, server.Exists(key))
	assert.Equal(t, time.Hour, server.TTL(key))
}

func TestCallplainAgent_ExplainLLMFailure(t *testing.T) {
	llm := &countingLLM{err: errors.New("invalid api key")}
	cache, err := cptools.NewMemoryCache(100, nil)
	require.NoError(t, err)

	a := newAgent(t, Options{LLM: llm, Cache: cache})

	_, err = a.Explain(context.Background(), transferRequest("polkadot"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)

	var toolErr *cptools.ToolError
	assert.True(t, errors.As(err, &toolErr))
}

func TestCallplainAgent_Catalog(t *testing.T) {
	a := newAgent(t, Options{})

	assert.NotEqual(t, knowledge.NoInformation, a.Lookup("staking.bond"))
	assert.Equal(t, knowledge.NoInformation, a.Lookup("staking.Bond"))
	assert.Contains(t, a.Rules("conviction-voting"), "[referendumIndex]")
	assert.Empty(t, a.Rules("utility"))
	assert.Contains(t, a.SupportedCalls(), "convictionVoting.vote")
	assert.NotEmpty(t, a.KnowledgeVersion())

	chains := a.GetSupportedChains()
	assert.Equal(t, "DOT", chains["polkadot"].Token)
	assert.Equal(t, 12, chains["kusama"].Decimals)
}
