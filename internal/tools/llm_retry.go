package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
)

// LLMRetryConfig configures retry behavior for LLM calls
type LLMRetryConfig struct {
	MaxRetries      int           `json:"max_retries"`       // Maximum number of retry attempts
	InitialDelay    time.Duration `json:"initial_delay"`     // Initial delay between retries
	MaxDelay        time.Duration `json:"max_delay"`         // Maximum delay between retries
	BackoffFactor   float64       `json:"backoff_factor"`    // Exponential backoff multiplier
	TimeoutPerRetry time.Duration `json:"timeout_per_retry"` // Timeout for each individual retry
}

// DefaultLLMRetryConfig returns a sensible default configuration
func DefaultLLMRetryConfig() LLMRetryConfig {
	return LLMRetryConfig{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		TimeoutPerRetry: 60 * time.Second,
	}
}

// LLMRetryWrapper wraps an LLM with retry logic
type LLMRetryWrapper struct {
	llm    llms.Model
	config LLMRetryConfig
	logger zerolog.Logger
}

// NewLLMRetryWrapper creates a new retry wrapper for an LLM
func NewLLMRetryWrapper(llm llms.Model, config LLMRetryConfig, logger zerolog.Logger) *LLMRetryWrapper {
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &LLMRetryWrapper{
		llm:    llm,
		config: config,
		logger: logger,
	}
}

// GenerateContent calls the LLM with retry logic for transient failures
func (w *LLMRetryWrapper) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var lastErr error
	delay := w.config.InitialDelay

	attempts := 0
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			w.logger.Debug().Int("attempt", attempt+1).Int("max", w.config.MaxRetries+1).Dur("delay", delay).Msg("retrying LLM call")
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if w.config.TimeoutPerRetry > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, w.config.TimeoutPerRetry)
		}

		response, err := w.llm.GenerateContent(attemptCtx, messages, options...)
		cancel()

		if err == nil {
			if attempt > 0 {
				w.logger.Debug().Int("attempt", attempt+1).Msg("LLM call succeeded after retry")
			}
			return response, nil
		}

		lastErr = err

		if attempt >= w.config.MaxRetries {
			break
		}

		// The caller gave up; retrying would only fail again
		if ctx.Err() != nil {
			break
		}

		if !IsRetryableError(err) {
			w.logger.Debug().Err(err).Msg("LLM error is not retryable")
			break
		}

		w.logger.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", delay).Msg("LLM call failed")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * w.config.BackoffFactor)
		if w.config.MaxDelay > 0 && delay > w.config.MaxDelay {
			delay = w.config.MaxDelay
		}
	}

	w.logger.Error().Err(lastErr).Int("attempts", attempts).Msg("LLM call failed")
	return nil, fmt.Errorf("LLM call failed after %d attempts: %w", attempts, lastErr)
}

// IsRetryableError determines if an error is worth retrying
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Per-attempt timeouts surface as deadline errors
	if strings.Contains(errStr, "context canceled") ||
		strings.Contains(errStr, "context cancelled") ||
		strings.Contains(errStr, "context deadline exceeded") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection timeout") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "temporary failure") {
		return true
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "server error") ||
		strings.Contains(errStr, "service unavailable") {
		return true
	}

	if strings.Contains(errStr, "dns") {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsRetryableError(urlErr.Err)
	}

	return false
}

// CallLLMWithRetry calls an LLM with the default retry configuration
func CallLLMWithRetry(ctx context.Context, llm llms.Model, messages []llms.MessageContent, logger zerolog.Logger, options ...llms.CallOption) (*llms.ContentResponse, error) {
	wrapper := NewLLMRetryWrapper(llm, DefaultLLMRetryConfig(), logger)
	return wrapper.GenerateContent(ctx, messages, options...)
}

// CallLLMWithCustomRetry calls an LLM with a custom retry configuration
func CallLLMWithCustomRetry(ctx context.Context, llm llms.Model, messages []llms.MessageContent, config LLMRetryConfig, logger zerolog.Logger, options ...llms.CallOption) (*llms.ContentResponse, error) {
	wrapper := NewLLMRetryWrapper(llm, config, logger)
	return wrapper.GenerateContent(ctx, messages, options...)
}
