package llm

import (
	"context"
	"fmt"

	"ai-tutor-be/pkg/resilience"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSONMode    bool
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithJSON asks the backend to constrain output to a JSON object.
func WithJSON() Option {
	return func(o *Options) {
		o.JSONMode = true
	}
}

func BuildOptions(opts ...Option) *Options {
	options := &Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// DeltaFunc receives streamed text as it arrives. Returning an error stops the stream.
type DeltaFunc func(delta string) error

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Stream sends a chat history and feeds deltas to onDelta. It returns the full text.
	Stream(ctx context.Context, history []Message, onDelta DeltaFunc, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// RetryingProvider throttles and retries Chat and Generate. Streams are only
// retried when the failure happens before the first delta.
type RetryingProvider struct {
	inner   LLMProvider
	limiter *resilience.RateLimiter
	policy  resilience.Policy
}

var _ LLMProvider = (*RetryingProvider)(nil)

func NewRetryingProvider(inner LLMProvider, limiter *resilience.RateLimiter, policy resilience.Policy) *RetryingProvider {
	return &RetryingProvider{inner: inner, limiter: limiter, policy: policy}
}

func (p *RetryingProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return resilience.Do(ctx, p.policy, p.limiter, resilience.OpChat, func(ctx context.Context) (string, error) {
		return p.inner.Chat(ctx, history, options...)
	})
}

func (p *RetryingProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, options...)
}

func (p *RetryingProvider) Stream(ctx context.Context, history []Message, onDelta DeltaFunc, options ...Option) (string, error) {
	return resilience.Do(ctx, p.policy, p.limiter, resilience.OpChat, func(ctx context.Context) (string, error) {
		started := false
		text, err := p.inner.Stream(ctx, history, func(delta string) error {
			started = true
			return onDelta(delta)
		}, options...)
		if err != nil && started {
			// partial output was already delivered; do not replay it
			return text, resilience.Permanent(fmt.Errorf("stream interrupted: %w", err))
		}
		return text, err
	})
}
