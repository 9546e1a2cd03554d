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
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "text-embedding-004"
)

// geminiProvider talks to the Gemini batch embedding endpoint.
type geminiProvider struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func newGeminiProvider(cfg *config.EmbeddingConfig) *geminiProvider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiProvider{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		apiKey:  cfg.GeminiAPIKey,
		client:  &http.Client{},
	}
}

func (p *geminiProvider) ModelID() string {
	return fmt.Sprintf("gemini_%s", p.model)
}

func (p *geminiProvider) Dimensions() int {
	if p.model == defaultGeminiModel {
		return 768
	}
	return 0
}

func (p *geminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	type request struct {
		Model   string  `json:"model"`
		Content content `json:"content"`
	}

	requests := make([]request, len(texts))
	for i, t := range texts {
		requests[i] = request{
			Model:   "models/" + p.model,
			Content: content{Parts: []part{{Text: t}}},
		}
	}
	body, err := json.Marshal(map[string]any{"requests": requests})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError("gemini", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("gemini", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("gemini", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	vectors := make([][]float64, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
