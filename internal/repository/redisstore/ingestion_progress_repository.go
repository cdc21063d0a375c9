package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ingest:progress:"

// IngestionProgressRepository shares job progress between API instances, so
// a poll may land on any of them.
type IngestionProgressRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.IngestionProgressRepository = (*IngestionProgressRepository)(nil)

func NewIngestionProgressRepository(rdb *redis.Client, ttl time.Duration) *IngestionProgressRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IngestionProgressRepository{rdb: rdb, ttl: ttl}
}

func (r *IngestionProgressRepository) Save(ctx context.Context, progress *entity.IngestionProgress) error {
	p := *progress
	p.UpdatedAt = time.Now()
	raw, err := json.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+p.JobId, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save progress %s: %w", p.JobId, err)
	}
	return nil
}

func (r *IngestionProgressRepository) Get(ctx context.Context, jobId string) (*entity.IngestionProgress, error) {
	raw, err := r.rdb.Get(ctx, keyPrefix+jobId).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", jobId, err)
	}
	var p entity.IngestionProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", jobId, err)
	}
	return &p, nil
}
