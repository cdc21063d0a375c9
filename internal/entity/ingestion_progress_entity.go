package entity

import (
	"time"

	"github.com/google/uuid"
)

type IngestionStatus string

const (
	IngestionIdle       IngestionStatus = "idle"
	IngestionProcessing IngestionStatus = "processing"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionError      IngestionStatus = "error"
)

// IngestionProgress is the polled state of a background ingestion job.
type IngestionProgress struct {
	JobId     string          `json:"job_id"`
	BookId    uuid.UUID       `json:"book_id"`
	LicenseId uuid.UUID       `json:"license_id"`
	Status    IngestionStatus `json:"status"`
	Message   string          `json:"message"`
	Percent   int             `json:"percent"`
	Filename  string          `json:"filename"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p *IngestionProgress) Terminal() bool {
	return p.Status == IngestionCompleted || p.Status == IngestionError
}
