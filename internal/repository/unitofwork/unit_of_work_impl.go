package unitofwork

import (
	"context"
	"fmt"

	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // nil outside a transaction
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) LicenseRepository() contract.LicenseRepository {
	return implementation.NewLicenseRepository(u.getDB())
}

func (u *UnitOfWorkImpl) StudentRepository() contract.StudentRepository {
	return implementation.NewStudentRepository(u.getDB())
}

func (u *UnitOfWorkImpl) BookRepository() contract.BookRepository {
	return implementation.NewBookRepository(u.getDB())
}

func (u *UnitOfWorkImpl) TopicRepository() contract.TopicRepository {
	return implementation.NewTopicRepository(u.getDB())
}

func (u *UnitOfWorkImpl) KnowledgeFragmentRepository() contract.KnowledgeFragmentRepository {
	return implementation.NewKnowledgeFragmentRepository(u.getDB())
}

func (u *UnitOfWorkImpl) EmbeddingCacheRepository() contract.EmbeddingCacheRepository {
	return implementation.NewEmbeddingCacheRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ProgressCursorRepository() contract.ProgressCursorRepository {
	return implementation.NewProgressCursorRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ChatSessionRepository() contract.ChatSessionRepository {
	return implementation.NewChatSessionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ChatMessageRepository() contract.ChatMessageRepository {
	return implementation.NewChatMessageRepository(u.getDB())
}
