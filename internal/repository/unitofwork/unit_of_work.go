package unitofwork

import (
	"context"

	"ai-tutor-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	LicenseRepository() contract.LicenseRepository
	StudentRepository() contract.StudentRepository
	BookRepository() contract.BookRepository
	TopicRepository() contract.TopicRepository
	KnowledgeFragmentRepository() contract.KnowledgeFragmentRepository
	EmbeddingCacheRepository() contract.EmbeddingCacheRepository
	ProgressCursorRepository() contract.ProgressCursorRepository

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
}
