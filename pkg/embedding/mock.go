package embedding

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// mockDimensions is the vector width of the mock provider.
const mockDimensions = 8

// MockProvider is the default provider: deterministic vectors derived from
// the input text, no network. Function fields override behavior in tests.
type MockProvider struct {
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float64, error)
	ModelIDFunc    func() string

	// Calls counts EmbedBatch invocations, overridden or not.
	Calls atomic.Int64
}

// NewMockProvider creates a mock with deterministic default behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) ModelID() string {
	if m.ModelIDFunc != nil {
		return m.ModelIDFunc()
	}
	return "mock_deterministic"
}

func (m *MockProvider) Dimensions() int { return mockDimensions }

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.Calls.Add(1)
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		vectors[i] = deterministicVector(t)
	}
	return vectors, nil
}

// deterministicVector hashes the text into a fixed-width unit-scale vector,
// so identical texts always embed identically.
func deterministicVector(text string) []float64 {
	vec := make([]float64, mockDimensions)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		// Map to [-1, 1).
		vec[i] = float64(int64(seed>>11))/float64(1<<52) - 1
	}
	return vec
}
