package model

import (
	"time"

	"github.com/google/uuid"
)

type ProgressCursor struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StudentId      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cursor_student_topic,priority:1"`
	TopicId        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cursor_student_topic,priority:2"`
	LastFragmentId uuid.UUID `gorm:"type:uuid;not null"`
	LastOrder      int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`

	Student Student `gorm:"foreignKey:StudentId;constraint:OnDelete:CASCADE"`
	Topic   Topic   `gorm:"foreignKey:TopicId;constraint:OnDelete:CASCADE"`
}

func (ProgressCursor) TableName() string {
	return "progress_cursors"
}
