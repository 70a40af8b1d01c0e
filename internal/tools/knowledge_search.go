package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"
	"github.com/tmc/langchaingo/llms"

	"github.com/txplain/callplain/internal/knowledge"
)

// maxSearchResults caps search_calls answers
const maxSearchResults = 5

// keyMatchBonus breaks ties in favour of keys the query spells out in order
const keyMatchBonus = 0.05

type keySource []string

func (k keySource) String(i int) string { return k[i] }
func (k keySource) Len() int            { return len(k) }

// KnowledgeSearchService exposes the catalog to the LLM as callable functions
type KnowledgeSearchService struct {
	kb     *knowledge.KnowledgeBase
	logger zerolog.Logger
}

// NewKnowledgeSearchService creates a search service over kb, or the embedded catalog when nil
func NewKnowledgeSearchService(kb *knowledge.KnowledgeBase, logger zerolog.Logger) *KnowledgeSearchService {
	if kb == nil {
		kb = knowledge.Default()
	}
	return &KnowledgeSearchService{kb: kb, logger: logger}
}

// CallResult is one catalog match
type CallResult struct {
	Key         string  `json:"key"`
	Function    string  `json:"function"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// SearchCallsResult represents the result of a catalog search
type SearchCallsResult struct {
	Query   string       `json:"query"`
	Results []CallResult `json:"results"`
	Found   int          `json:"found"`
}

// LookupCall returns the exact catalog entry for key
func (s *KnowledgeSearchService) LookupCall(ctx context.Context, key string) (*SearchCallsResult, error) {
	result := &SearchCallsResult{Query: key, Results: []CallResult{}}
	if entry, ok := s.kb.Entry(key); ok {
		result.Results = append(result.Results, CallResult{
			Key:         key,
			Function:    entry.Function,
			Description: entry.Description,
			Confidence:  1,
		})
	}
	result.Found = len(result.Results)
	return result, nil
}

// SearchCalls performs a fuzzy search over catalog keys, signatures and descriptions
func (s *KnowledgeSearchService) SearchCalls(ctx context.Context, query string) (*SearchCallsResult, error) {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	keys := s.kb.Keys()
	spelled := make(map[string]bool)
	for _, match := range fuzzy.FindFrom(strings.ReplaceAll(queryLower, " ", ""), keySource(keys)) {
		spelled[keys[match.Index]] = true
	}

	var results []CallResult
	for _, key := range keys {
		entry, _ := s.kb.Entry(key)
		confidence := calculateFuzzyMatch(queryLower, key, entry)
		if confidence <= 0.1 {
			continue
		}
		if spelled[key] {
			confidence += keyMatchBonus
		}
		results = append(results, CallResult{
			Key:         key,
			Function:    entry.Function,
			Description: entry.Description,
			Confidence:  confidence,
		})
	}

	// Keys are already sorted, so equal scores keep catalog order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	if results == nil {
		results = []CallResult{}
	}

	s.logger.Debug().Str("query", query).Int("found", len(results)).Msg("catalog search")

	return &SearchCallsResult{
		Query:   query,
		Results: results,
		Found:   len(results),
	}, nil
}

// calculateFuzzyMatch scores how well a catalog entry matches the lowercased query
func calculateFuzzyMatch(query, key string, entry knowledge.Entry) float64 {
	keyLower := strings.ToLower(key)
	function := strings.ToLower(entry.Function)
	description := strings.ToLower(entry.Description)

	score := 0.0
	if keyLower == query {
		score += 1.0
	}
	if strings.Contains(keyLower, query) {
		score += 0.8
	}
	if strings.Contains(function, query) {
		score += 0.6
	}
	if strings.Contains(description, query) {
		score += 0.4
	}

	for _, word := range strings.Fields(query) {
		if len(word) <= 2 {
			continue
		}
		if strings.Contains(keyLower, word) {
			score += 0.2
		}
		if strings.Contains(description, word) {
			score += 0.1
		}
	}

	return score
}

// GetLangChainGoTools returns LangChainGo tool definitions for function calling
func (s *KnowledgeSearchService) GetLangChainGoTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "lookup_call",
				Description: "Get the signature and description of one call by its exact key. Use this for nested calls, such as the calls inside a batch or the call wrapped by a proxy.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"key": map[string]any{
							"type":        "string",
							"description": "Call key in the form '<section>.<method>' with camelCase names. Examples: 'balances.transferKeepAlive', 'staking.bondExtra'",
						},
					},
					"required": []string{"key"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "search_calls",
				Description: "Search the call catalog by keyword. Partial pallet names, method names and words from descriptions all match.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search query. Examples: 'vesting', 'multisig', 'reserve transfer'",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

// HandleFunctionCall processes LLM function calls and returns results
func (s *KnowledgeSearchService) HandleFunctionCall(ctx context.Context, functionName string, arguments map[string]interface{}) (interface{}, error) {
	s.logger.Debug().Str("function", functionName).Interface("args", arguments).Msg("LLM function call")

	switch functionName {
	case "lookup_call":
		if key, ok := arguments["key"].(string); ok {
			return s.LookupCall(ctx, key)
		}
		return nil, fmt.Errorf("lookup_call requires 'key' parameter")

	case "search_calls":
		if query, ok := arguments["query"].(string); ok {
			return s.SearchCalls(ctx, query)
		}
		return nil, fmt.Errorf("search_calls requires 'query' parameter")

	default:
		return nil, fmt.Errorf("unknown function: %s", functionName)
	}
}
