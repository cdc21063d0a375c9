package model

import (
	"time"

	"github.com/google/uuid"
)

type Book struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LicenseId   uuid.UUID `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"type:varchar(500);not null"`
	Description string    `gorm:"type:text"`
	PdfPath     string    `gorm:"type:text"`
	PageCount   int       `gorm:"default:0"`
	Active      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	License License `gorm:"foreignKey:LicenseId;constraint:OnDelete:CASCADE"`
}

func (Book) TableName() string {
	return "books"
}
