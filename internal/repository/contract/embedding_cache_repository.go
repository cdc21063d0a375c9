package contract

import "context"

type EmbeddingCacheRepository interface {
	GetMany(ctx context.Context, hashes []string) (map[string][]float32, error)
	// Put is an idempotent insert: an existing hash is left untouched.
	Put(ctx context.Context, hash, text string, vector []float32) error
}
