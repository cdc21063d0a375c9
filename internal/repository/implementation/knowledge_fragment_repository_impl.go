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
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const defaultTextSearchConfig = "spanish"

type KnowledgeFragmentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeFragmentMapper
}

func NewKnowledgeFragmentRepository(db *gorm.DB) contract.KnowledgeFragmentRepository {
	return &KnowledgeFragmentRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeFragmentMapper(),
	}
}

var fragmentAssociations = []string{"Topic", "PreviousFragment", "NextFragment"}

// Inserts run in their own (nested) transaction. Inside an outer
// transaction gorm turns that into a savepoint, so a rejected row does not
// abort the rest of the outer work.

func (r *KnowledgeFragmentRepositoryImpl) Create(ctx context.Context, fragment *entity.KnowledgeFragment) error {
	m := r.mapper.ToModel(fragment)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(fragmentAssociations...).Create(m).Error
	})
	if err != nil {
		return err
	}
	*fragment = *r.mapper.ToEntity(m)
	return nil
}

// CreateBulk writes all fragments in one statement; it fails as a whole.
func (r *KnowledgeFragmentRepositoryImpl) CreateBulk(ctx context.Context, fragments []*entity.KnowledgeFragment) error {
	if len(fragments) == 0 {
		return nil
	}
	models := r.mapper.ToModels(fragments)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(fragmentAssociations...).Create(&models).Error
	})
	if err != nil {
		return err
	}
	for i, m := range models {
		*fragments[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *KnowledgeFragmentRepositoryImpl) UpdateChainLinks(ctx context.Context, id uuid.UUID, previous, next *uuid.UUID, bookPosition int) error {
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeFragment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"previous_fragment_id": previous,
			"next_fragment_id":     next,
			"book_position":        bookPosition,
		}).Error
}

func (r *KnowledgeFragmentRepositoryImpl) ClearBookLinks(ctx context.Context, bookId uuid.UUID) error {
	topics := r.db.Table("topics").Select("id").Where("book_id = ?", bookId)
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeFragment{}).
		Where("topic_id IN (?)", topics).
		Updates(map[string]interface{}{
			"previous_fragment_id": nil,
			"next_fragment_id":     nil,
		}).Error
}

func (r *KnowledgeFragmentRepositoryImpl) DeleteByTopicId(ctx context.Context, topicId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("topic_id = ?", topicId).Delete(&model.KnowledgeFragment{}).Error
}

func (r *KnowledgeFragmentRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.KnowledgeFragment, error) {
	return r.FindOne(ctx, specification.ByID{ID: id})
}

func (r *KnowledgeFragmentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeFragment, error) {
	var m model.KnowledgeFragment
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *KnowledgeFragmentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeFragment, error) {
	var models []*model.KnowledgeFragment
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *KnowledgeFragmentRepositoryImpl) FindByTopicOrdered(ctx context.Context, topicId uuid.UUID) ([]*entity.KnowledgeFragment, error) {
	return r.FindAll(ctx,
		specification.ByTopicID{TopicID: topicId},
		specification.OrderBy{Field: "appearance_order"},
	)
}

// FindNextInTopic returns the fragment with the smallest order above
// afterOrder, so gaps in the sequence are skipped.
func (r *KnowledgeFragmentRepositoryImpl) FindNextInTopic(ctx context.Context, topicId uuid.UUID, afterOrder int) (*entity.KnowledgeFragment, error) {
	var m model.KnowledgeFragment
	err := r.db.WithContext(ctx).
		Where("topic_id = ? AND appearance_order > ?", topicId, afterOrder).
		Order("appearance_order ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// FindBookChain lists the book's fragments in emission order: topic reading
// order first, then appearance order inside each topic.
func (r *KnowledgeFragmentRepositoryImpl) FindBookChain(ctx context.Context, bookId uuid.UUID) ([]*entity.KnowledgeFragment, error) {
	var models []*model.KnowledgeFragment
	err := r.db.WithContext(ctx).
		Select("knowledge_fragments.*").
		Joins("JOIN topics ON topics.id = knowledge_fragments.topic_id").
		Where("topics.book_id = ?", bookId).
		Order("topics.sequence ASC, knowledge_fragments.appearance_order ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *KnowledgeFragmentRepositoryImpl) scoped(ctx context.Context, licenseId uuid.UUID, bookId *uuid.UUID) *gorm.DB {
	db := r.db.WithContext(ctx).
		Table("knowledge_fragments AS kf").
		Joins("JOIN topics t ON t.id = kf.topic_id").
		Joins("JOIN books b ON b.id = t.book_id").
		Where("b.license_id = ?", licenseId).
		Where("b.active = ?", true)
	if bookId != nil {
		db = db.Where("b.id = ?", *bookId)
	}
	return db
}

func (r *KnowledgeFragmentRepositoryImpl) FindTopicFragmentsInScope(ctx context.Context, topicId, licenseId uuid.UUID, bookId *uuid.UUID) ([]*entity.ScoredFragment, error) {
	var rows []*model.ScoredKnowledgeFragment
	err := r.scoped(ctx, licenseId, bookId).
		Select("kf.*, 1.0 AS score, t.name AS topic_name, t.book_id AS book_id, t.sequence AS sequence").
		Where("kf.topic_id = ?", topicId).
		Order("kf.appearance_order ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.toScored(rows), nil
}

// HybridSearch ranks the licence's fragments by a weighted sum of ts_rank
// and cosine similarity. A zero embedding yields NaN distance, which is
// scored as 0 so lexical matches still rank.
func (r *KnowledgeFragmentRepositoryImpl) HybridSearch(ctx context.Context, q contract.HybridQuery) ([]*entity.ScoredFragment, error) {
	if q.Limit <= 0 {
		q.Limit = 5
	}
	cfg := q.TextSearchCfg
	if cfg == "" {
		cfg = defaultTextSearchConfig
	}

	queryVector := pgvector.NewVector(q.Embedding)
	ranked := r.scoped(ctx, q.LicenseId, q.BookId).
		Select(
			"kf.*, "+
				"(? * ts_rank(kf.search_vector, plainto_tsquery(?::regconfig, immutable_unaccent(?))) + "+
				"? * COALESCE(NULLIF(1 - (kf.embedding <=> ?), 'NaN'::float8), 0)) AS score, "+
				"t.name AS topic_name, t.book_id AS book_id, t.sequence AS sequence",
			q.TextWeight, cfg, q.Text, q.VectorWeight, queryVector,
		)

	var rows []*model.ScoredKnowledgeFragment
	err := r.db.WithContext(ctx).
		Table("(?) AS ranked", ranked).
		Where("ranked.score >= ?", q.MinScore).
		Order("ranked.score DESC").
		Limit(q.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.toScored(rows), nil
}

func (r *KnowledgeFragmentRepositoryImpl) CountInScope(ctx context.Context, licenseId uuid.UUID, bookId *uuid.UUID) (int64, error) {
	var count int64
	err := r.scoped(ctx, licenseId, bookId).Count(&count).Error
	return count, err
}

func (r *KnowledgeFragmentRepositoryImpl) toScored(rows []*model.ScoredKnowledgeFragment) []*entity.ScoredFragment {
	out := make([]*entity.ScoredFragment, len(rows))
	for i, row := range rows {
		out[i] = r.mapper.ToScored(row)
	}
	return out
}
