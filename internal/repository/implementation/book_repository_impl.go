package implementation

import (
	"context"
	"errors"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BookMapper
}

func NewBookRepository(db *gorm.DB) contract.BookRepository {
	return &BookRepositoryImpl{
		db:     db,
		mapper: mapper.NewBookMapper(),
	}
}

func (r *BookRepositoryImpl) Create(ctx context.Context, book *entity.Book) error {
	m := r.mapper.ToModel(book)
	if err := r.db.WithContext(ctx).Omit("License").Create(m).Error; err != nil {
		return err
	}
	*book = *r.mapper.ToEntity(m)
	return nil
}

func (r *BookRepositoryImpl) Update(ctx context.Context, book *entity.Book) error {
	m := r.mapper.ToModel(book)
	if err := r.db.WithContext(ctx).Omit("License").Save(m).Error; err != nil {
		return err
	}
	*book = *r.mapper.ToEntity(m)
	return nil
}

// Delete relies on ON DELETE CASCADE for topics, fragments and cursors.
func (r *BookRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Book{}, "id = ?", id).Error
}

func (r *BookRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Book, error) {
	var m model.Book
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *BookRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Book, error) {
	var models []*model.Book
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

type TopicRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TopicMapper
}

func NewTopicRepository(db *gorm.DB) contract.TopicRepository {
	return &TopicRepositoryImpl{
		db:     db,
		mapper: mapper.NewTopicMapper(),
	}
}

func (r *TopicRepositoryImpl) CreateBulk(ctx context.Context, topics []*entity.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	models := r.mapper.ToModels(topics)
	if err := r.db.WithContext(ctx).Omit("Book", "Parent").Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*topics[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *TopicRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Topic, error) {
	var m model.Topic
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TopicRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Topic, error) {
	var models []*model.Topic
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *TopicRepositoryImpl) FindInScope(ctx context.Context, topicId, licenseId uuid.UUID) (*entity.Topic, error) {
	var m model.Topic
	err := r.db.WithContext(ctx).
		Select("topics.*").
		Joins("JOIN books ON books.id = topics.book_id").
		Where("topics.id = ?", topicId).
		Where("books.license_id = ?", licenseId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TopicRepositoryImpl) FindNextWithFragments(ctx context.Context, bookId uuid.UUID, afterSequence int) (*entity.Topic, error) {
	var m model.Topic
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND sequence > ?", bookId, afterSequence).
		Where("EXISTS (SELECT 1 FROM knowledge_fragments kf WHERE kf.topic_id = topics.id)").
		Order("sequence ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
