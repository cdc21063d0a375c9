package events

import (
	"github.com/google/uuid"
)

const (
	TypeBookIngested     = "BOOK_INGESTED"
	TypeBookIngestFailed = "BOOK_INGEST_FAILED"
	TypeBookCompleted    = "BOOK_COMPLETED"
)

func NewBookIngested(jobId string, bookId, licenseId uuid.UUID, topics, fragments, skipped int) BaseEvent {
	return New(TypeBookIngested, map[string]interface{}{
		"job_id":     jobId,
		"book_id":    bookId.String(),
		"license_id": licenseId.String(),
		"topics":     topics,
		"fragments":  fragments,
		"skipped":    skipped,
	})
}

func NewBookIngestFailed(jobId string, bookId, licenseId uuid.UUID, reason string) BaseEvent {
	return New(TypeBookIngestFailed, map[string]interface{}{
		"job_id":     jobId,
		"book_id":    bookId.String(),
		"license_id": licenseId.String(),
		"reason":     reason,
	})
}

// NewBookCompleted is raised when a student advances past the last fragment
// of a book.
func NewBookCompleted(studentId, licenseId, bookId uuid.UUID) BaseEvent {
	return New(TypeBookCompleted, map[string]interface{}{
		"student_id": studentId.String(),
		"license_id": licenseId.String(),
		"book_id":    bookId.String(),
	})
}
