package mapper

import (
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
)

type BookMapper struct{}

func NewBookMapper() *BookMapper {
	return &BookMapper{}
}

func (m *BookMapper) ToEntity(b *model.Book) *entity.Book {
	if b == nil {
		return nil
	}

	var updatedAt *time.Time
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		updatedAt = &t
	}

	return &entity.Book{
		Id:          b.Id,
		LicenseId:   b.LicenseId,
		Title:       b.Title,
		Description: b.Description,
		PdfPath:     b.PdfPath,
		PageCount:   b.PageCount,
		Active:      b.Active,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *BookMapper) ToModel(b *entity.Book) *model.Book {
	if b == nil {
		return nil
	}

	var updatedAt time.Time
	if b.UpdatedAt != nil {
		updatedAt = *b.UpdatedAt
	}

	return &model.Book{
		Id:          b.Id,
		LicenseId:   b.LicenseId,
		Title:       b.Title,
		Description: b.Description,
		PdfPath:     b.PdfPath,
		PageCount:   b.PageCount,
		Active:      b.Active,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *BookMapper) ToEntities(books []*model.Book) []*entity.Book {
	entities := make([]*entity.Book, len(books))
	for i, b := range books {
		entities[i] = m.ToEntity(b)
	}
	return entities
}

type TopicMapper struct{}

func NewTopicMapper() *TopicMapper {
	return &TopicMapper{}
}

func (m *TopicMapper) ToEntity(t *model.Topic) *entity.Topic {
	if t == nil {
		return nil
	}
	return &entity.Topic{
		Id:        t.Id,
		BookId:    t.BookId,
		ParentId:  t.ParentId,
		Name:      t.Name,
		Level:     t.Level,
		Order:     t.Order,
		Sequence:  t.Sequence,
		StartPage: t.StartPage,
		EndPage:   t.EndPage,
		CreatedAt: t.CreatedAt,
	}
}

func (m *TopicMapper) ToModel(t *entity.Topic) *model.Topic {
	if t == nil {
		return nil
	}
	return &model.Topic{
		Id:        t.Id,
		BookId:    t.BookId,
		ParentId:  t.ParentId,
		Name:      t.Name,
		Level:     t.Level,
		Order:     t.Order,
		Sequence:  t.Sequence,
		StartPage: t.StartPage,
		EndPage:   t.EndPage,
		CreatedAt: t.CreatedAt,
	}
}

func (m *TopicMapper) ToEntities(topics []*model.Topic) []*entity.Topic {
	entities := make([]*entity.Topic, len(topics))
	for i, t := range topics {
		entities[i] = m.ToEntity(t)
	}
	return entities
}

func (m *TopicMapper) ToModels(topics []*entity.Topic) []*model.Topic {
	models := make([]*model.Topic, len(topics))
	for i, t := range topics {
		models[i] = m.ToModel(t)
	}
	return models
}
