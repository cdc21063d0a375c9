package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
)

// IngestionProgressRepository holds the polled state of ingestion jobs.
// Get returns nil, nil for unknown or expired jobs.
type IngestionProgressRepository interface {
	Save(ctx context.Context, progress *entity.IngestionProgress) error
	Get(ctx context.Context, jobId string) (*entity.IngestionProgress, error)
}
