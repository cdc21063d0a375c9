package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProgressCursor is the last fragment a student saw in a topic.
type ProgressCursor struct {
	Id             uuid.UUID
	StudentId      uuid.UUID
	TopicId        uuid.UUID
	LastFragmentId uuid.UUID
	LastOrder      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
