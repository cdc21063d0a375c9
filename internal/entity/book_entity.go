package entity

import (
	"time"

	"github.com/google/uuid"
)

type Book struct {
	Id          uuid.UUID
	LicenseId   uuid.UUID
	Title       string
	Description string
	PdfPath     string
	PageCount   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
