package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// APIProvider implements Provider using an OpenAI-compatible embeddings API.
// Setting APIVersion switches to Azure OpenAI deployment routes.
type APIProvider struct {
	endpoint   string
	model      string
	apiKey     string
	apiVersion string
	dimension  int
	client     *http.Client
}

// NewAPIProvider creates a new APIProvider from the given Config.
func NewAPIProvider(cfg Config) *APIProvider {
	return &APIProvider{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeoutOr(cfg.Timeout)},
	}
}

type apiRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type apiEmbeddingData struct {
	Embedding []float32 `json:"embedding"`
}

type apiResponse struct {
	Data []apiEmbeddingData `json:"data"`
}

func (p *APIProvider) url() string {
	if p.apiVersion == "" {
		return p.endpoint + "/embeddings"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		p.endpoint, url.PathEscape(p.model), url.QueryEscape(p.apiVersion))
}

// Embed sends texts to the endpoint and returns one embedding per text.
func (p *APIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := apiRequest{Input: texts}
	if p.apiVersion == "" {
		reqBody.Model = p.model
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiVersion != "" {
		req.Header.Set("api-key", p.apiKey)
	} else if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}

	embeddings := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Dimension returns the configured embedding dimension.
func (p *APIProvider) Dimension() int {
	return p.dimension
}
