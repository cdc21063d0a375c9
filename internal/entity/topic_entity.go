package entity

import (
	"time"

	"github.com/google/uuid"
)

// Topic is a node of a book outline. Order is relative to ParentId; Sequence
// is the global reading order inside the book.
type Topic struct {
	Id        uuid.UUID
	BookId    uuid.UUID
	ParentId  *uuid.UUID
	Name      string
	Level     int
	Order     int
	Sequence  int
	StartPage int
	EndPage   int
	CreatedAt time.Time
}
