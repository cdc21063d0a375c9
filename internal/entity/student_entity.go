package entity

import (
	"time"

	"github.com/google/uuid"
)

type Student struct {
	Id        uuid.UUID
	LicenseId uuid.UUID
	BookId    *uuid.UUID // assigned book, nil means the latest active book of the licence
	Name      string
	Email     string
	Active    bool
	CreatedAt time.Time
}
