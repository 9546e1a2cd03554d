package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/estategraph/estate-engine/pkg/config"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
)

// ollamaProvider talks to a local ollama host. The /api/embeddings endpoint
// takes one prompt per request, so a batch is a sequence of calls.
type ollamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllamaProvider(cfg *config.EmbeddingConfig) *ollamaProvider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	// A containerized engine reaches a host-local ollama daemon through the
	// docker host alias.
	base = config.ResolveURLForDocker(base)
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &ollamaProvider{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (p *ollamaProvider) ModelID() string {
	return fmt.Sprintf("ollama_%s", p.model)
}

func (p *ollamaProvider) Dimensions() int { return 0 }

func (p *ollamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *ollamaProvider) embedOne(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError("ollama", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("ollama", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("ollama", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return parsed.Embedding, nil
}
