package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/timmy/wanderlust/internal/config"
)

const (
	jinaEndpoint = "https://api.jina.ai/v1/embeddings"

	defaultProviderTimeout = 30 * time.Second
)

// EmbeddingProvider turns text into fixed-length dense vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dimensions() int
}

// newProviderClient builds a resty client with bearer auth and JSON bodies.
func newProviderClient(apiKey string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	return client
}

// NewEmbeddingProvider creates the provider named by cfg.Provider.
// Parameters:
//   - cfg: embedding configuration (validated).
// Returns:
//   - EmbeddingProvider: Jina or OpenAI-compatible client.
//   - error: non-nil if the configuration is invalid.
func NewEmbeddingProvider(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "openai-compatible":
		return NewOpenAIEmbeddingService(cfg), nil
	default:
		return NewJinaEmbeddingService(cfg), nil
	}
}

// ============================================
// Jina
// ============================================

// JinaEmbeddingService calls the Jina embeddings API.
type JinaEmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewJinaEmbeddingService creates a new Jina embedding client.
func NewJinaEmbeddingService(cfg *config.EmbeddingConfig) *JinaEmbeddingService {
	endpoint := jinaEndpoint
	if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/embeddings"
	}
	return &JinaEmbeddingService{
		client:     newProviderClient(cfg.APIKey, 0),
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Dimensions returns the configured vector size.
func (s *JinaEmbeddingService) Dimensions() int {
	return s.dimensions
}

// Jina API request/response structures
type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *embeddingResponse) errorMessage() string {
	if r.Detail != "" {
		return r.Detail
	}
	if r.Error != nil {
		return r.Error.Message
	}
	return ""
}

// Embed generates an embedding for a single passage.
func (s *JinaEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return firstEmbedding(s.EmbedBatch(ctx, []string{text}))
}

// EmbedBatch generates passage embeddings for multiple texts.
func (s *JinaEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embed(ctx, "retrieval.passage", texts)
}

// EmbedQuery generates an embedding optimized for search queries.
func (s *JinaEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return firstEmbedding(s.embed(ctx, "retrieval.query", []string{query}))
}

func (s *JinaEmbeddingService) embed(ctx context.Context, task string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	req := jinaRequest{
		Model:         s.model,
		Task:          task,
		Dimensions:    s.dimensions,
		Input:         texts,
		EmbeddingType: "float",
	}
	return postEmbeddings(ctx, s.client, s.endpoint, "Jina", req, len(texts))
}

// ============================================
// OpenAI-compatible
// ============================================

// OpenAIEmbeddingService calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewOpenAIEmbeddingService creates a new OpenAI-compatible embedding client.
func NewOpenAIEmbeddingService(cfg *config.EmbeddingConfig) *OpenAIEmbeddingService {
	return &OpenAIEmbeddingService{
		client:     newProviderClient(cfg.APIKey, 0),
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

type openAIEmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// Dimensions returns the configured vector size.
func (s *OpenAIEmbeddingService) Dimensions() int {
	return s.dimensions
}

// Embed generates an embedding for a single text.
func (s *OpenAIEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return firstEmbedding(s.EmbedBatch(ctx, []string{text}))
}

// EmbedBatch generates embeddings for multiple texts.
func (s *OpenAIEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	req := openAIEmbeddingRequest{Model: s.model, Input: texts, Dimensions: s.dimensions}
	return postEmbeddings(ctx, s.client, s.endpoint, "embedding", req, len(texts))
}

// EmbedQuery embeds a query; the OpenAI API has no separate query task.
func (s *OpenAIEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.Embed(ctx, query)
}

// ============================================
// Shared helpers
// ============================================

func postEmbeddings(ctx context.Context, client *resty.Client, endpoint, name string, body any, expected int) ([][]float32, error) {
	var resp embeddingResponse
	httpResp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s API: %w", name, err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if msg := resp.errorMessage(); msg != "" {
			return nil, fmt.Errorf("%s API error: %s", name, msg)
		}
		return nil, fmt.Errorf("%s API error: status %d", name, httpResp.StatusCode())
	}

	if len(resp.Data) != expected {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), expected)
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, expected)
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < expected {
			embeddings[item.Index] = item.Embedding
		}
	}
	return embeddings, nil
}

func firstEmbedding(embeddings [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}
