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
	defaultVoyageBaseURL = "https://api.voyageai.com/v1"
	defaultVoyageModel   = "voyage-2"
)

// voyageProvider talks to the Voyage AI embeddings API.
type voyageProvider struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func newVoyageProvider(cfg *config.EmbeddingConfig) *voyageProvider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultVoyageBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultVoyageModel
	}
	return &voyageProvider{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		apiKey:  cfg.VoyageAPIKey,
		client:  &http.Client{},
	}
}

func (p *voyageProvider) ModelID() string {
	return fmt.Sprintf("voyage_%s", p.model)
}

func (p *voyageProvider) Dimensions() int {
	if p.model == "voyage-2" {
		return 1024
	}
	return 0
}

func (p *voyageProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal voyage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build voyage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError("voyage", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("voyage", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("voyage", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode voyage response: %w", err)
	}

	vectors := make([][]float64, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}
