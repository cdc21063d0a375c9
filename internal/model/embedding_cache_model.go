package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type EmbeddingCacheEntry struct {
	TextHash     string          `gorm:"type:char(64);primaryKey"`
	OriginalText string          `gorm:"type:text"`
	Embedding    pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

func (EmbeddingCacheEntry) TableName() string {
	return "embedding_cache"
}
