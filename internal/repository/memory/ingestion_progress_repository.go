package memory

import (
	"context"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

const DefaultProgressTTL = time.Hour

// IngestionProgressRepository is the single-instance progress store.
type IngestionProgressRepository struct {
	cache *cache.Cache
}

var _ contract.IngestionProgressRepository = (*IngestionProgressRepository)(nil)

func NewIngestionProgressRepository(ttl time.Duration) *IngestionProgressRepository {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &IngestionProgressRepository{cache: cache.New(ttl, 10*time.Minute)}
}

func (r *IngestionProgressRepository) Save(_ context.Context, progress *entity.IngestionProgress) error {
	p := *progress
	p.UpdatedAt = time.Now()
	r.cache.Set(p.JobId, &p, cache.DefaultExpiration)
	return nil
}

func (r *IngestionProgressRepository) Get(_ context.Context, jobId string) (*entity.IngestionProgress, error) {
	x, found := r.cache.Get(jobId)
	if !found {
		return nil, nil
	}
	p := *x.(*entity.IngestionProgress)
	return &p, nil
}
