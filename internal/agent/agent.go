package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/txplain/callplain/internal/enrich"
	"github.com/txplain/callplain/internal/knowledge"
	"github.com/txplain/callplain/internal/models"
	cptools "github.com/txplain/callplain/internal/tools"
)

const tracerName = "github.com/txplain/callplain/internal/agent"

// DefaultModel is the OpenAI model used when none is configured
const DefaultModel = "gpt-4.1-mini"

// ErrInvalidRequest marks errors caused by the caller's input
var ErrInvalidRequest = errors.New("invalid request")

// Options configures a CallplainAgent. Zero values disable the optional parts:
// no LLM means enrichment-only results, no Cache means every call is explained afresh.
type Options struct {
	LLM       llms.Model
	Retry     cptools.LLMRetryConfig
	Cache     cptools.Cache
	Locker    cptools.Locker
	CacheTTL  time.Duration
	Registry  *enrich.Registry
	Knowledge *knowledge.KnowledgeBase
	Logger    zerolog.Logger
	Verbose   bool
}

// CallplainAgent orchestrates the call explanation workflow
type CallplainAgent struct {
	llm      llms.Model
	registry *enrich.Registry
	kb       *knowledge.KnowledgeBase
	pipeline *cptools.BaggagePipeline
	cache    cptools.Cache
	locker   cptools.Locker
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewOpenAILLM creates the OpenAI client used for explanations
func NewOpenAILLM(apiKey, model string) (llms.Model, error) {
	if model == "" {
		model = DefaultModel
	}
	llm, err := openai.New(
		openai.WithModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return llm, nil
}

// NewCallplainAgent builds the explanation pipeline once; it is shared by all requests
func NewCallplainAgent(opts Options) (*CallplainAgent, error) {
	if opts.Registry == nil {
		opts.Registry = enrich.DefaultRegistry
	}
	if opts.Knowledge == nil {
		opts.Knowledge = knowledge.Default()
	}
	if opts.Locker == nil {
		opts.Locker = cptools.NoopLocker{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cptools.ExplanationTTLDuration
	}
	if opts.Retry == (cptools.LLMRetryConfig{}) {
		opts.Retry = cptools.DefaultLLMRetryConfig()
	}

	logger := opts.Logger.With().Str("component", "agent").Logger()

	search := cptools.NewKnowledgeSearchService(opts.Knowledge, opts.Logger)
	explainer := cptools.NewTransactionExplainer(opts.LLM, search, opts.Retry, opts.Logger)
	explainer.SetVerbose(opts.Verbose)

	pipeline, err := cptools.NewExplanationPipeline(opts.Registry, opts.Knowledge, explainer, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build explanation pipeline: %w", err)
	}
	pipeline.LogExecutionOrder()

	return &CallplainAgent{
		llm:      opts.LLM,
		registry: opts.Registry,
		kb:       opts.Knowledge,
		pipeline: pipeline,
		cache:    opts.Cache,
		locker:   opts.Locker,
		cacheTTL: opts.CacheTTL,
		logger:   logger,
	}, nil
}

// HasLLM reports whether Explain produces summaries
func (a *CallplainAgent) HasLLM() bool {
	return a.llm != nil
}

// Enrich decodes a request without touching the LLM or the cache
func (a *CallplainAgent) Enrich(request *models.ExplainRequest) (*models.EnrichedTx, error) {
	call, err := a.parse(request)
	if err != nil {
		return nil, err
	}
	return a.EnrichCall(call), nil
}

// EnrichCall decodes an already built call
func (a *CallplainAgent) EnrichCall(call *models.RawCall) *models.EnrichedTx {
	return a.registry.ExplainCall(call)
}

func (a *CallplainAgent) parse(request *models.ExplainRequest) (*models.RawCall, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	call, err := request.ToRawCall()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return call, nil
}

// Explain enriches the call and generates its explanation. Results are cached
// by call fingerprint when a cache and an LLM are configured.
func (a *CallplainAgent) Explain(ctx context.Context, request *models.ExplainRequest) (*models.ExplanationResult, error) {
	call, err := a.parse(request)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "callplain.explain")
	span.SetAttributes(attribute.String("callplain.call", call.Key()))
	defer span.End()

	fingerprint := cptools.CallFingerprint(call)
	caching := a.cache != nil && a.llm != nil

	if caching {
		if cached, ok := a.cached(ctx, fingerprint); ok {
			span.SetAttributes(attribute.Bool("callplain.cached", true))
			return cached, nil
		}

		// Concurrent requests for the same call wait here instead of all calling the LLM
		unlock, err := a.locker.Lock(ctx, fingerprint)
		if err != nil {
			a.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("explaining without lock")
		} else {
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					a.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("failed to release lock")
				}
			}()
			if cached, ok := a.cached(ctx, fingerprint); ok {
				return cached, nil
			}
		}
	}

	baggage := map[string]interface{}{cptools.BaggageCall: call}
	if err := a.pipeline.Execute(ctx, baggage); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	explanation, ok := baggage[cptools.BaggageExplanation].(*models.ExplanationResult)
	if !ok {
		return nil, fmt.Errorf("invalid explanation result format")
	}
	explanation.Fingerprint = fingerprint

	if caching {
		ttl := a.cacheTTL
		if err := a.cache.SetJSON(ctx, cptools.ExplanationKey(fingerprint), explanation, &ttl); err != nil {
			a.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("failed to cache explanation")
		}
	}

	a.logger.Debug().Str("call", call.Key()).Str("type", string(explanation.Enriched.Type)).Msg("call explained")
	return explanation, nil
}

func (a *CallplainAgent) cached(ctx context.Context, fingerprint string) (*models.ExplanationResult, bool) {
	var explanation models.ExplanationResult
	if err := a.cache.GetJSON(ctx, cptools.ExplanationKey(fingerprint), &explanation); err != nil {
		if !errors.Is(err, cptools.ErrCacheMiss) {
			a.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("cache read failed")
		}
		return nil, false
	}
	explanation.Cached = true
	return &explanation, true
}

// Lookup returns the catalog entry for "<section>.<method>", or knowledge.NoInformation
func (a *CallplainAgent) Lookup(callKey string) string {
	return a.kb.Lookup(callKey)
}

// Rules returns the phrasing template for a section, empty when there is none
func (a *CallplainAgent) Rules(section string) string {
	return knowledge.RulesFor(section)
}

// SupportedCalls returns the dispatch keys with a dedicated handler
func (a *CallplainAgent) SupportedCalls() []string {
	return a.registry.Keys()
}

// KnowledgeVersion returns the version of the loaded catalog
func (a *CallplainAgent) KnowledgeVersion() string {
	return a.kb.Version()
}

// GetSupportedChains returns the chain presets requests can refer to
func (a *CallplainAgent) GetSupportedChains() map[string]models.Chain {
	chains := make(map[string]models.Chain)
	for _, id := range models.ListChainIDs() {
		chain, _ := models.GetChain(id)
		chains[id] = chain
	}
	return chains
}

// Close releases the cache
func (a *CallplainAgent) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}
