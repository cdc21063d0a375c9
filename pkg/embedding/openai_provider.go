package embedding

import (
	"context"
	"errors"
	"fmt"

	"ai-tutor-be/pkg/resilience"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint in batches.
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	dim      int
	maxBatch int
}

var _ Provider = (*OpenAIProvider)(nil)

// nativeDimensions are the output sizes of the OpenAI models when no
// dimensions parameter is sent. Unknown models are assumed to produce
// DefaultDimension.
var nativeDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

func NewOpenAIProvider(apiKey, baseURL, model string, dim, maxBatch int) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if dim <= 0 {
		dim = DefaultDimension
	}
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		dim:      dim,
		maxBatch: maxBatch,
	}
}

func (p *OpenAIProvider) Dimension() int { return p.dim }
func (p *OpenAIProvider) MaxBatch() int  { return p.maxBatch }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, p.request(texts))
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	// the API may return data out of request order
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// request asks for a shortened vector when the configured dimension differs
// from what the model returns by default.
func (p *OpenAIProvider) request(texts []string) openai.EmbeddingRequestStrings {
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}
	native, ok := nativeDimensions[p.model]
	if !ok {
		native = DefaultDimension
	}
	if p.dim != native {
		req.Dimensions = p.dim
	}
	return req
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.FromStatus(apiErr.HTTPStatusCode, fmt.Errorf("openai embeddings: %w", err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.FromStatus(reqErr.HTTPStatusCode, fmt.Errorf("openai embeddings: %w", err))
	}
	return resilience.Transient(fmt.Errorf("openai embeddings: %w", err))
}
