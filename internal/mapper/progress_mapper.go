package mapper

import (
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
)

type ProgressCursorMapper struct{}

func NewProgressCursorMapper() *ProgressCursorMapper {
	return &ProgressCursorMapper{}
}

func (m *ProgressCursorMapper) ToEntity(c *model.ProgressCursor) *entity.ProgressCursor {
	if c == nil {
		return nil
	}
	return &entity.ProgressCursor{
		Id:             c.Id,
		StudentId:      c.StudentId,
		TopicId:        c.TopicId,
		LastFragmentId: c.LastFragmentId,
		LastOrder:      c.LastOrder,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (m *ProgressCursorMapper) ToModel(c *entity.ProgressCursor) *model.ProgressCursor {
	if c == nil {
		return nil
	}
	return &model.ProgressCursor{
		Id:             c.Id,
		StudentId:      c.StudentId,
		TopicId:        c.TopicId,
		LastFragmentId: c.LastFragmentId,
		LastOrder:      c.LastOrder,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
