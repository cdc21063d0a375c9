package model

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Client      string    `gorm:"type:varchar(255);not null"`
	MaxStudents int       `gorm:"default:0"`
	Active      bool      `gorm:"default:true"`
	StartsAt    time.Time `gorm:"not null"`
	EndsAt      *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (License) TableName() string {
	return "licenses"
}
