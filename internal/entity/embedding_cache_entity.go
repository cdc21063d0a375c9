package entity

import "time"

type EmbeddingCacheEntry struct {
	TextHash     string
	OriginalText string
	Embedding    []float32
	CreatedAt    time.Time
}
