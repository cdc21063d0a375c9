package implementation

import (
	"context"

	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmbeddingCacheRepositoryImpl struct {
	db *gorm.DB
}

func NewEmbeddingCacheRepository(db *gorm.DB) contract.EmbeddingCacheRepository {
	return &EmbeddingCacheRepositoryImpl{db: db}
}

func (r *EmbeddingCacheRepositoryImpl) GetMany(ctx context.Context, hashes []string) (map[string][]float32, error) {
	found := make(map[string][]float32, len(hashes))
	if len(hashes) == 0 {
		return found, nil
	}
	var rows []model.EmbeddingCacheEntry
	if err := r.db.WithContext(ctx).Where("text_hash IN ?", hashes).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		found[row.TextHash] = row.Embedding.Slice()
	}
	return found, nil
}

// Put loses a concurrent race silently: the first writer's row stays.
func (r *EmbeddingCacheRepositoryImpl) Put(ctx context.Context, hash, text string, vector []float32) error {
	entry := model.EmbeddingCacheEntry{
		TextHash:     hash,
		OriginalText: text,
		Embedding:    pgvector.NewVector(vector),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "text_hash"}}, DoNothing: true}).
		Create(&entry).Error
}
