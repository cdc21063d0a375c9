package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// KnowledgeFragment also has a generated search_vector tsvector column that
// is created by the migration command, not by AutoMigrate.
type KnowledgeFragment struct {
	Id                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TopicId            uuid.UUID       `gorm:"type:uuid;not null;index:idx_fragments_topic_order,priority:1"`
	Content            string          `gorm:"type:text;not null"`
	ContentType        string          `gorm:"type:varchar(20);not null;default:'prose'"`
	AppearanceOrder    int             `gorm:"not null;index:idx_fragments_topic_order,priority:2"`
	BookPosition       int             `gorm:"not null;default:0"`
	Page               int             `gorm:"default:0"`
	Metadata           datatypes.JSON  `gorm:"type:jsonb"`
	Embedding          pgvector.Vector `gorm:"type:vector(1536)"`
	PreviousFragmentId *uuid.UUID      `gorm:"type:uuid;index"`
	NextFragmentId     *uuid.UUID      `gorm:"type:uuid;index"`
	CreatedAt          time.Time       `gorm:"autoCreateTime"`

	Topic            Topic              `gorm:"foreignKey:TopicId;constraint:OnDelete:CASCADE"`
	PreviousFragment *KnowledgeFragment `gorm:"foreignKey:PreviousFragmentId;constraint:OnDelete:SET NULL"`
	NextFragment     *KnowledgeFragment `gorm:"foreignKey:NextFragmentId;constraint:OnDelete:SET NULL"`
}

func (KnowledgeFragment) TableName() string {
	return "knowledge_fragments"
}

// ScoredKnowledgeFragment is the row shape of the hybrid search query.
type ScoredKnowledgeFragment struct {
	KnowledgeFragment
	Score     float64
	TopicName string
	BookId    uuid.UUID
	Sequence  int
}
