package mapper

import (
	"encoding/json"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type KnowledgeFragmentMapper struct{}

func NewKnowledgeFragmentMapper() *KnowledgeFragmentMapper {
	return &KnowledgeFragmentMapper{}
}

func (m *KnowledgeFragmentMapper) ToEntity(f *model.KnowledgeFragment) *entity.KnowledgeFragment {
	if f == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(f.Metadata) > 0 {
		_ = json.Unmarshal(f.Metadata, &metadata)
	}

	return &entity.KnowledgeFragment{
		Id:                 f.Id,
		TopicId:            f.TopicId,
		Content:            f.Content,
		ContentType:        entity.ContentType(f.ContentType),
		AppearanceOrder:    f.AppearanceOrder,
		BookPosition:       f.BookPosition,
		Page:               f.Page,
		Metadata:           metadata,
		Embedding:          f.Embedding.Slice(),
		PreviousFragmentId: f.PreviousFragmentId,
		NextFragmentId:     f.NextFragmentId,
		CreatedAt:          f.CreatedAt,
	}
}

func (m *KnowledgeFragmentMapper) ToModel(f *entity.KnowledgeFragment) *model.KnowledgeFragment {
	if f == nil {
		return nil
	}

	var metadata datatypes.JSON
	if f.Metadata != nil {
		if raw, err := json.Marshal(f.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.KnowledgeFragment{
		Id:                 f.Id,
		TopicId:            f.TopicId,
		Content:            f.Content,
		ContentType:        string(f.ContentType),
		AppearanceOrder:    f.AppearanceOrder,
		BookPosition:       f.BookPosition,
		Page:               f.Page,
		Metadata:           metadata,
		Embedding:          pgvector.NewVector(f.Embedding),
		PreviousFragmentId: f.PreviousFragmentId,
		NextFragmentId:     f.NextFragmentId,
		CreatedAt:          f.CreatedAt,
	}
}

func (m *KnowledgeFragmentMapper) ToEntities(fragments []*model.KnowledgeFragment) []*entity.KnowledgeFragment {
	entities := make([]*entity.KnowledgeFragment, len(fragments))
	for i, f := range fragments {
		entities[i] = m.ToEntity(f)
	}
	return entities
}

func (m *KnowledgeFragmentMapper) ToModels(fragments []*entity.KnowledgeFragment) []*model.KnowledgeFragment {
	models := make([]*model.KnowledgeFragment, len(fragments))
	for i, f := range fragments {
		models[i] = m.ToModel(f)
	}
	return models
}

func (m *KnowledgeFragmentMapper) ToScored(s *model.ScoredKnowledgeFragment) *entity.ScoredFragment {
	return &entity.ScoredFragment{
		Fragment:  m.ToEntity(&s.KnowledgeFragment),
		Score:     s.Score,
		TopicName: s.TopicName,
		BookId:    s.BookId,
		Sequence:  s.Sequence,
	}
}
