package dto

import (
	"time"

	"github.com/google/uuid"
)

// IngestBookMessage is the queued ingestion job.
type IngestBookMessage struct {
	JobId     string    `json:"job_id"`
	BookId    uuid.UUID `json:"book_id"`
	LicenseId uuid.UUID `json:"license_id"`
	FilePath  string    `json:"file_path"`
	Filename  string    `json:"filename"`
}

type UploadBookResponse struct {
	JobId  string    `json:"job_id"`
	BookId uuid.UUID `json:"book_id"`
}

type BookResponse struct {
	Id          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	PageCount   int        `json:"page_count"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type UpdateBookRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// TopicNode is one node of a book outline with its children in order.
type TopicNode struct {
	Id        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Level     int          `json:"level"`
	Order     int          `json:"order"`
	Sequence  int          `json:"sequence"`
	StartPage int          `json:"start_page"`
	EndPage   int          `json:"end_page"`
	Children  []*TopicNode `json:"children"`
}

type UpdateTopicContentRequest struct {
	Content string `json:"content" validate:"required"`
}

type UpdateTopicContentResponse struct {
	TopicId   uuid.UUID `json:"topic_id"`
	Fragments int       `json:"fragments"`
	Skipped   int       `json:"skipped"`
}
