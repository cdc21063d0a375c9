package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

type fakeProvider struct {
	mu       sync.Mutex
	calls    [][]string
	maxBatch int
	gate     chan struct{}
	vecFor   func(text string) []float32
	err      error
}

func (p *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.calls = append(p.calls, append([]string(nil), texts...))
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if p.vecFor != nil {
			out[i] = p.vecFor(t)
		} else {
			out[i] = []float32{float32(len(t)), 1, 0, 0}
		}
	}
	return out, nil
}

func (p *fakeProvider) Dimension() int { return testDim }
func (p *fakeProvider) MaxBatch() int  { return p.maxBatch }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]float32
	texts   map[string]string
	readErr error
	puts    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string][]float32{}, texts: map[string]string{}}
}

func (s *memoryStore) GetMany(_ context.Context, hashes []string) (map[string][]float32, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]float32{}
	for _, h := range hashes {
		if v, ok := s.entries[h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

func (s *memoryStore) Put(_ context.Context, hash, text string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if _, exists := s.entries[hash]; exists {
		return nil
	}
	s.entries[hash] = vector
	s.texts[hash] = text
	return nil
}

func TestGateway_BatchKeepsInputOrderAndDeduplicates(t *testing.T) {
	p := &fakeProvider{maxBatch: 10}
	g := NewGateway(p, newMemoryStore(), nil)

	out, err := g.EmbedBatch(context.Background(), []string{"aa", "b", "aa", "cccc"})
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Equal(t, float32(2), out[0][0])
	assert.Equal(t, float32(1), out[1][0])
	assert.Equal(t, float32(2), out[2][0])
	assert.Equal(t, float32(4), out[3][0])

	require.Equal(t, 1, p.callCount())
	assert.Equal(t, []string{"aa", "b", "cccc"}, p.calls[0])
}

func TestGateway_PartitionsMissesBySubBatch(t *testing.T) {
	p := &fakeProvider{maxBatch: 2}
	g := NewGateway(p, newMemoryStore(), nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := g.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, 3, p.callCount())
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), out[i][0])
	}
}

func TestGateway_HitMakesNoProviderCall(t *testing.T) {
	p := &fakeProvider{maxBatch: 10}
	store := newMemoryStore()
	g := NewGateway(p, store, nil)
	ctx := context.Background()

	first, err := g.Embed(ctx, "hola")
	require.NoError(t, err)
	second, err := g.Embed(ctx, "hola")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.callCount())

	// durable entry serves a fresh gateway too
	g2 := NewGateway(p, store, nil)
	third, err := g2.Embed(ctx, "hola")
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, 1, p.callCount())
}

func TestGateway_ConcurrentIdenticalTextsCallProviderOnce(t *testing.T) {
	p := &fakeProvider{maxBatch: 10, gate: make(chan struct{})}
	g := NewGateway(p, newMemoryStore(), nil)

	const callers = 8
	results := make([][]float32, callers)
	var wg sync.WaitGroup
	started := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			v, err := g.Embed(context.Background(), "misma frase")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	close(p.gate)
	wg.Wait()

	assert.Equal(t, 1, p.callCount())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestGateway_MalformedVectorsBecomeZeroAndAreNotCached(t *testing.T) {
	p := &fakeProvider{maxBatch: 10, vecFor: func(text string) []float32 {
		switch text {
		case "nan":
			return []float32{float32(math.NaN()), 0, 0, 0}
		case "short":
			return []float32{1}
		case "empty":
			return nil
		}
		return []float32{1, 0, 0, 0}
	}}
	store := newMemoryStore()
	g := NewGateway(p, store, nil)

	out, err := g.EmbedBatch(context.Background(), []string{"nan", "short", "empty", "ok"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Len(t, out[i], testDim)
		assert.True(t, IsZero(out[i]))
	}
	assert.False(t, IsZero(out[3]))
	assert.Len(t, store.entries, 1)
}

func TestGateway_BlankTextSkipsProvider(t *testing.T) {
	p := &fakeProvider{maxBatch: 10}
	g := NewGateway(p, nil, nil)

	v, err := g.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.True(t, IsZero(v))
	assert.Len(t, v, testDim)
	assert.Equal(t, 0, p.callCount())
}

func TestGateway_ProviderFailurePropagates(t *testing.T) {
	boom := errors.New("provider down")
	p := &fakeProvider{maxBatch: 10, err: boom}
	g := NewGateway(p, newMemoryStore(), nil)

	_, err := g.EmbedBatch(context.Background(), []string{"x", "y"})
	assert.ErrorIs(t, err, boom)

	// nothing is left pending after a failure
	g.mu.Lock()
	assert.Empty(t, g.pending)
	g.mu.Unlock()
}

func TestGateway_StoreReadFailureDegradesToMiss(t *testing.T) {
	p := &fakeProvider{maxBatch: 10}
	store := newMemoryStore()
	store.readErr = errors.New("db unavailable")
	g := NewGateway(p, store, nil)

	v, err := g.Embed(context.Background(), "texto")
	require.NoError(t, err)
	assert.Equal(t, float32(5), v[0])
	assert.Equal(t, 1, p.callCount())
}

func TestGateway_StoresTruncatedOriginalText(t *testing.T) {
	p := &fakeProvider{maxBatch: 10}
	store := newMemoryStore()
	g := NewGateway(p, store, nil)

	long := make([]rune, MaxCachedTextRunes+50)
	for i := range long {
		long[i] = 'á'
	}
	_, err := g.Embed(context.Background(), string(long))
	require.NoError(t, err)

	stored := store.texts[HashText(string(long))]
	assert.Len(t, []rune(stored), MaxCachedTextRunes)
}

func TestHashText_IsStable(t *testing.T) {
	assert.Equal(t, HashText("abc"), HashText("abc"))
	assert.NotEqual(t, HashText("abc"), HashText("abc "))
	assert.Len(t, HashText("abc"), 64)
}

// cancellableProvider blocks its first call until the caller's context ends.
type cancellableProvider struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (p *cancellableProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		close(p.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (p *cancellableProvider) Dimension() int { return testDim }
func (p *cancellableProvider) MaxBatch() int  { return 10 }

func TestGateway_WaiterOutlivesCancelledOwner(t *testing.T) {
	p := &cancellableProvider{started: make(chan struct{})}
	g := NewGateway(p, newMemoryStore(), nil)
	hash := HashText("frase compartida")

	ownerCtx, cancel := context.WithCancel(context.Background())
	ownerErr := make(chan error, 1)
	go func() {
		_, err := g.Embed(ownerCtx, "frase compartida")
		ownerErr <- err
	}()
	<-p.started

	type result struct {
		vec []float32
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		v, err := g.Embed(context.Background(), "frase compartida")
		waiter <- result{v, err}
	}()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		call := g.pending[hash]
		return call != nil && call.waiters == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-ownerErr, context.Canceled)

	res := <-waiter
	require.NoError(t, res.err)
	assert.Equal(t, []float32{1, 0, 0, 0}, res.vec)
	assert.Equal(t, 2, p.calls)
}
