package entity

import (
	"time"

	"github.com/google/uuid"
)

// License is the tenant boundary. Every book and student belongs to one.
type License struct {
	Id          uuid.UUID
	Client      string
	MaxStudents int
	Active      bool
	StartsAt    time.Time
	EndsAt      *time.Time
	CreatedAt   time.Time
}
