package embedding

import (
	"context"
	"math"
	"time"

	"ai-tutor-be/pkg/resilience"
)

// DefaultDimension matches text-embedding-3-small.
const DefaultDimension = 1536

// Provider turns texts into vectors. Results are returned in input order;
// implementations that receive them out of order re-sort by index.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	MaxBatch() int
}

// RetryingProvider throttles calls through a shared limiter and retries
// rate-limit and transient failures with bounded backoff.
type RetryingProvider struct {
	inner   Provider
	limiter *resilience.RateLimiter
	policy  resilience.Policy
}

var _ Provider = (*RetryingProvider)(nil)

func NewRetryingProvider(inner Provider, limiter *resilience.RateLimiter, policy resilience.Policy) *RetryingProvider {
	return &RetryingProvider{inner: inner, limiter: limiter, policy: policy}
}

func (p *RetryingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.Do(ctx, p.policy, p.limiter, resilience.OpEmbed, func(ctx context.Context) ([][]float32, error) {
		return p.inner.Embed(ctx, texts)
	})
}

func (p *RetryingProvider) Dimension() int { return p.inner.Dimension() }
func (p *RetryingProvider) MaxBatch() int  { return p.inner.MaxBatch() }

// DefaultRetryPolicy is three attempts starting at one second.
func DefaultRetryPolicy() resilience.Policy {
	return resilience.Policy{MaxTries: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second}
}

// normalizeVector scales vec to unit length so cosine distance is meaningful.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
