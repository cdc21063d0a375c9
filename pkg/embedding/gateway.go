package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"ai-tutor-be/internal/pkg/logger"

	"github.com/patrickmn/go-cache"
)

// MaxCachedTextRunes bounds the original text stored next to a cached vector.
const MaxCachedTextRunes = 2000

// CacheStore is the durable side of the cache. Put must tolerate a duplicate
// hash written by a concurrent caller.
type CacheStore interface {
	GetMany(ctx context.Context, hashes []string) (map[string][]float32, error)
	Put(ctx context.Context, hash, text string, vector []float32) error
}

type inflight struct {
	done    chan struct{}
	vec     []float32
	err     error
	waiters int
}

// Gateway is a content-addressed cache in front of a Provider. Identical
// texts requested concurrently produce a single provider call.
type Gateway struct {
	provider Provider
	store    CacheStore
	local    *cache.Cache
	logger   logger.ILogger

	mu      sync.Mutex
	pending map[string]*inflight
}

func NewGateway(provider Provider, store CacheStore, log logger.ILogger) *Gateway {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Gateway{
		provider: provider,
		store:    store,
		local:    cache.New(30*time.Minute, 10*time.Minute),
		logger:   log,
		pending:  make(map[string]*inflight),
	}
}

// Dimension is the vector length every returned vector has.
func (g *Gateway) Dimension() int {
	if d := g.provider.Dimension(); d > 0 {
		return d
	}
	return DefaultDimension
}

// HashText is the cache key for text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch returns one vector per input, in input order. Misses are
// deduplicated, split into provider-sized sub-batches and requested one
// sub-batch at a time.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	positions := make(map[string][]int)
	textByHash := make(map[string]string)
	var order []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = g.zero()
			continue
		}
		h := HashText(text)
		if _, seen := positions[h]; !seen {
			order = append(order, h)
			textByHash[h] = text
		}
		positions[h] = append(positions[h], i)
	}

	found := g.lookup(ctx, order)

	var owned []string
	waiting := make(map[string]*inflight)
	g.mu.Lock()
	for _, h := range order {
		if _, ok := found[h]; ok {
			continue
		}
		// a concurrent owner may have finished since lookup
		if v, ok := g.local.Get(h); ok {
			found[h] = v.([]float32)
			continue
		}
		if call, ok := g.pending[h]; ok {
			call.waiters++
			waiting[h] = call
			continue
		}
		g.pending[h] = &inflight{done: make(chan struct{})}
		owned = append(owned, h)
	}
	g.mu.Unlock()

	if err := g.fetch(ctx, owned, textByHash, found); err != nil {
		return nil, err
	}

	// an owner that went away leaves its texts to the callers still waiting
	var orphaned []string
	for h, call := range waiting {
		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if call.err != nil {
			if isContextError(call.err) {
				orphaned = append(orphaned, h)
				continue
			}
			return nil, call.err
		}
		found[h] = call.vec
	}
	if len(orphaned) > 0 {
		inputs := make([]string, len(orphaned))
		for i, h := range orphaned {
			inputs[i] = textByHash[h]
		}
		vectors, err := g.EmbedBatch(ctx, inputs)
		if err != nil {
			return nil, err
		}
		for i, h := range orphaned {
			found[h] = vectors[i]
		}
	}

	for h, idxs := range positions {
		for _, i := range idxs {
			out[i] = found[h]
		}
	}
	return out, nil
}

// lookup checks the in-process cache, then the durable store. A store read
// failure degrades to misses.
func (g *Gateway) lookup(ctx context.Context, hashes []string) map[string][]float32 {
	found := make(map[string][]float32, len(hashes))
	var remote []string
	for _, h := range hashes {
		if v, ok := g.local.Get(h); ok {
			found[h] = v.([]float32)
			continue
		}
		remote = append(remote, h)
	}
	if len(remote) == 0 || g.store == nil {
		return found
	}

	stored, err := g.store.GetMany(ctx, remote)
	if err != nil {
		g.logger.Warn("EmbeddingGateway", "Cache read failed, treating as misses", map[string]interface{}{"error": err.Error(), "count": len(remote)})
		return found
	}
	for h, v := range stored {
		if vec, ok := g.sanitize(v); ok {
			found[h] = vec
			g.local.Set(h, vec, cache.DefaultExpiration)
		}
	}
	return found
}

// fetch calls the provider for the hashes this caller owns and resolves the
// matching in-flight entries, successful or not.
func (g *Gateway) fetch(ctx context.Context, owned []string, textByHash map[string]string, found map[string][]float32) (err error) {
	results := make(map[string][]float32, len(owned))
	defer func() {
		g.mu.Lock()
		for _, h := range owned {
			call := g.pending[h]
			delete(g.pending, h)
			if call == nil {
				continue
			}
			if vec, ok := results[h]; ok {
				call.vec = vec
			} else if err != nil {
				call.err = err
				if call.waiters > 0 {
					g.logger.Warn("EmbeddingGateway", "Embedding failed with callers waiting", map[string]interface{}{"hash": h, "waiters": call.waiters, "error": err.Error()})
				}
			} else {
				call.err = fmt.Errorf("embedding for %s was not produced", h)
			}
			close(call.done)
		}
		g.mu.Unlock()
	}()

	size := g.provider.MaxBatch()
	if size <= 0 {
		size = len(owned)
	}
	for start := 0; start < len(owned); start += size {
		end := start + size
		if end > len(owned) {
			end = len(owned)
		}
		batch := owned[start:end]
		inputs := make([]string, len(batch))
		for i, h := range batch {
			inputs[i] = textByHash[h]
		}

		vectors, callErr := g.provider.Embed(ctx, inputs)
		if callErr != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, callErr)
		}

		for i, h := range batch {
			var raw []float32
			if i < len(vectors) {
				raw = vectors[i]
			}
			vec, ok := g.sanitize(raw)
			results[h] = vec
			found[h] = vec
			if !ok {
				g.logger.Warn("EmbeddingGateway", "Malformed vector replaced with zero vector", map[string]interface{}{"hash": h, "length": len(raw)})
				continue
			}
			g.local.Set(h, vec, cache.DefaultExpiration)
			if g.store != nil {
				if putErr := g.store.Put(ctx, h, truncateRunes(textByHash[h], MaxCachedTextRunes), vec); putErr != nil {
					g.logger.Warn("EmbeddingGateway", "Cache write failed", map[string]interface{}{"hash": h, "error": putErr.Error()})
				}
			}
		}
	}
	return nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// sanitize returns vec when usable, or a zero vector and false when it is
// empty, has the wrong length or holds NaN/Inf.
func (g *Gateway) sanitize(vec []float32) ([]float32, bool) {
	dim := g.Dimension()
	if len(vec) == 0 || len(vec) != dim {
		return g.zero(), false
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return g.zero(), false
		}
	}
	return vec, true
}

func (g *Gateway) zero() []float32 {
	return make([]float32, g.Dimension())
}

// IsZero reports whether vec is the degraded fallback vector.
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
