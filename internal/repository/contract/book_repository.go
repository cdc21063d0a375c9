package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"

	"github.com/google/uuid"
)

type BookRepository interface {
	Create(ctx context.Context, book *entity.Book) error
	Update(ctx context.Context, book *entity.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Book, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Book, error)
}

type TopicRepository interface {
	// CreateBulk expects ids to be assigned by the caller so parents can be
	// referenced inside the same batch.
	CreateBulk(ctx context.Context, topics []*entity.Topic) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Topic, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Topic, error)
	// FindInScope returns the topic only when its book belongs to the licence.
	FindInScope(ctx context.Context, topicId, licenseId uuid.UUID) (*entity.Topic, error)
	// FindNextWithFragments returns the first topic after sequence that holds
	// at least one fragment, or nil when the book has none left.
	FindNextWithFragments(ctx context.Context, bookId uuid.UUID, afterSequence int) (*entity.Topic, error)
}
