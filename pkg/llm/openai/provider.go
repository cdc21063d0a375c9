package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/resilience"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client *goopenai.Client
	model  string
}

var _ llm.LLMProvider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &OpenAIProvider{client: goopenai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAIProvider) request(history []llm.Message, stream bool, opts ...llm.Option) goopenai.ChatCompletionRequest {
	options := llm.BuildOptions(opts...)
	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, m := range history {
		role := m.Role
		if role == "model" {
			role = llm.RoleAssistant
		}
		messages[i] = goopenai.ChatCompletionMessage{Role: role, Content: m.Content}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		Stream:      stream,
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}
	if options.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return req
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(history, false, opts...))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, opts ...llm.Option) (string, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(history, true, opts...))
	if err != nil {
		return "", classify(err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), classify(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return full.String(), err
		}
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return resilience.FromStatus(apiErr.HTTPStatusCode, fmt.Errorf("openai chat: %w", err))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.FromStatus(reqErr.HTTPStatusCode, fmt.Errorf("openai chat: %w", err))
	}
	return resilience.Transient(fmt.Errorf("openai chat: %w", err))
}
