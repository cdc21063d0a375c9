package model

import (
	"time"

	"github.com/google/uuid"
)

type Student struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LicenseId uuid.UUID  `gorm:"type:uuid;not null;index"`
	BookId    *uuid.UUID `gorm:"type:uuid;index"`
	Name      string     `gorm:"type:varchar(255);not null"`
	Email     string     `gorm:"type:varchar(255);uniqueIndex"`
	Active    bool       `gorm:"default:true"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`

	License License `gorm:"foreignKey:LicenseId;constraint:OnDelete:CASCADE"`
}

func (Student) TableName() string {
	return "students"
}
