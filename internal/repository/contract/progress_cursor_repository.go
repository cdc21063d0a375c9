package contract

import (
	"context"

	"ai-tutor-be/internal/entity"

	"github.com/google/uuid"
)

type ProgressCursorRepository interface {
	Find(ctx context.Context, studentId, topicId uuid.UUID) (*entity.ProgressCursor, error)
	// CreateIfAbsent inserts the cursor unless one already exists for the
	// (student, topic) pair, then returns the stored row.
	CreateIfAbsent(ctx context.Context, cursor *entity.ProgressCursor) (*entity.ProgressCursor, bool, error)
	// Advance moves the cursor forward only; it reports false when the stored
	// order is already at or beyond the requested one.
	Advance(ctx context.Context, cursorId, fragmentId uuid.UUID, order int) (bool, error)
	FindLatestForStudent(ctx context.Context, studentId uuid.UUID) (*entity.ProgressCursor, error)
}
