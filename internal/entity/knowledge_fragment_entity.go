package entity

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentTypeProse ContentType = "prose"
	ContentTypeCode  ContentType = "code"
)

// KnowledgeFragment is one chunk of a topic. AppearanceOrder is 1..N inside
// the topic; BookPosition is 1..M across the book in emission order.
type KnowledgeFragment struct {
	Id                 uuid.UUID
	TopicId            uuid.UUID
	Content            string
	ContentType        ContentType
	AppearanceOrder    int
	BookPosition       int
	Page               int
	Metadata           map[string]interface{}
	Embedding          []float32
	PreviousFragmentId *uuid.UUID
	NextFragmentId     *uuid.UUID
	CreatedAt          time.Time
}

// ScoredFragment carries the hybrid score and the owning topic/book.
type ScoredFragment struct {
	Fragment  *KnowledgeFragment
	Score     float64
	TopicName string
	BookId    uuid.UUID
	Sequence  int
}
