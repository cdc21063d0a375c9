package model

import (
	"time"

	"github.com/google/uuid"
)

type Topic struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BookId    uuid.UUID  `gorm:"type:uuid;not null;index:idx_topics_book_sequence,priority:1"`
	ParentId  *uuid.UUID `gorm:"type:uuid;index"`
	Name      string     `gorm:"type:varchar(500);not null"`
	Level     int        `gorm:"not null;default:1"`
	Order     int        `gorm:"column:sort_order;not null"`
	Sequence  int        `gorm:"not null;index:idx_topics_book_sequence,priority:2"`
	StartPage int        `gorm:"default:1"`
	EndPage   int        `gorm:"default:1"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`

	Book   Book   `gorm:"foreignKey:BookId;constraint:OnDelete:CASCADE"`
	Parent *Topic `gorm:"foreignKey:ParentId;constraint:OnDelete:CASCADE"`
}

func (Topic) TableName() string {
	return "topics"
}
