// Package embedding turns Gold rows into vectors: chunking the canonical
// embedding_text, batching nodes across sharded workers, calling a pluggable
// provider with retries and a circuit breaker, and writing the sibling
// {entity}_gold_embeddings_{runId} table. Provider failures degrade nodes to
// null vectors; they never fail the run.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/estategraph/estate-engine/pkg/config"
)

// Provider is the wire-protocol abstraction. One instance is created per
// worker shard so no HTTP state is shared across workers.
type Provider interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// ModelID identifies the provider and model as "{provider}_{model}".
	ModelID() string

	// Dimensions is the expected vector width, 0 when the model does not
	// advertise one. The engine verifies uniformity either way.
	Dimensions() int
}

// ProviderFactory builds a fresh provider instance for one worker.
type ProviderFactory func() (Provider, error)

// NewProviderFactory resolves the configured provider variant.
func NewProviderFactory(cfg *config.EmbeddingConfig) (ProviderFactory, error) {
	switch cfg.Provider {
	case "ollama":
		return func() (Provider, error) { return newOllamaProvider(cfg), nil }, nil
	case "openai":
		return func() (Provider, error) { return newOpenAIProvider(cfg), nil }, nil
	case "voyage":
		return func() (Provider, error) { return newVoyageProvider(cfg), nil }, nil
	case "gemini":
		return func() (Provider, error) { return newGeminiProvider(cfg), nil }, nil
	case "mock":
		return func() (Provider, error) { return NewMockProvider(), nil }, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// ProviderError is a classified provider failure. It implements the
// retry.RetryableError interface so the backoff loop retries transport and
// server failures but not auth or request errors.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " HTTP %d", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// IsRetryable implements retry.RetryableError.
func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// statusRetryable classifies an HTTP status: rate limits and server errors
// are transient, everything else in 4xx is permanent.
func statusRetryable(code int) bool {
	return code == 429 || code >= 500
}

func transportError(provider string, cause error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Message:   "request failed",
		Retryable: true,
		Cause:     cause,
	}
}

func statusError(provider string, code int, body string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		StatusCode: code,
		Message:    strings.TrimSpace(body),
		Retryable:  statusRetryable(code),
	}
}
