package implementation

import (
	"context"
	"errors"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressCursorRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProgressCursorMapper
}

func NewProgressCursorRepository(db *gorm.DB) contract.ProgressCursorRepository {
	return &ProgressCursorRepositoryImpl{
		db:     db,
		mapper: mapper.NewProgressCursorMapper(),
	}
}

func (r *ProgressCursorRepositoryImpl) Find(ctx context.Context, studentId, topicId uuid.UUID) (*entity.ProgressCursor, error) {
	var m model.ProgressCursor
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND topic_id = ?", studentId, topicId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ProgressCursorRepositoryImpl) CreateIfAbsent(ctx context.Context, cursor *entity.ProgressCursor) (*entity.ProgressCursor, bool, error) {
	m := r.mapper.ToModel(cursor)
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Omit("Student", "Topic").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "topic_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return r.mapper.ToEntity(m), true, nil
	}

	existing, err := r.Find(ctx, cursor.StudentId, cursor.TopicId)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("progress cursor vanished after conflicting insert")
	}
	return existing, false, nil
}

func (r *ProgressCursorRepositoryImpl) Advance(ctx context.Context, cursorId, fragmentId uuid.UUID, order int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ProgressCursor{}).
		Where("id = ? AND last_order < ?", cursorId, order).
		Updates(map[string]interface{}{
			"last_fragment_id": fragmentId,
			"last_order":       order,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ProgressCursorRepositoryImpl) FindLatestForStudent(ctx context.Context, studentId uuid.UUID) (*entity.ProgressCursor, error) {
	var m model.ProgressCursor
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentId).
		Order("updated_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
