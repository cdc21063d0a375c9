package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"

	"github.com/google/uuid"
)

// HybridQuery is a lexical plus vector search bounded to one licence and,
// optionally, one book.
type HybridQuery struct {
	Text          string
	Embedding     []float32
	LicenseId     uuid.UUID
	BookId        *uuid.UUID
	Limit         int
	MinScore      float64
	TextWeight    float64
	VectorWeight  float64
	TextSearchCfg string
}

type KnowledgeFragmentRepository interface {
	Create(ctx context.Context, fragment *entity.KnowledgeFragment) error
	CreateBulk(ctx context.Context, fragments []*entity.KnowledgeFragment) error
	UpdateChainLinks(ctx context.Context, id uuid.UUID, previous, next *uuid.UUID, bookPosition int) error
	// ClearBookLinks nulls every previous/next reference of the book's chain.
	ClearBookLinks(ctx context.Context, bookId uuid.UUID) error
	DeleteByTopicId(ctx context.Context, topicId uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.KnowledgeFragment, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeFragment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeFragment, error)
	FindByTopicOrdered(ctx context.Context, topicId uuid.UUID) ([]*entity.KnowledgeFragment, error)
	FindNextInTopic(ctx context.Context, topicId uuid.UUID, afterOrder int) (*entity.KnowledgeFragment, error)
	FindBookChain(ctx context.Context, bookId uuid.UUID) ([]*entity.KnowledgeFragment, error)
	FindTopicFragmentsInScope(ctx context.Context, topicId, licenseId uuid.UUID, bookId *uuid.UUID) ([]*entity.ScoredFragment, error)
	HybridSearch(ctx context.Context, q HybridQuery) ([]*entity.ScoredFragment, error)
	CountInScope(ctx context.Context, licenseId uuid.UUID, bookId *uuid.UUID) (int64, error)
}
