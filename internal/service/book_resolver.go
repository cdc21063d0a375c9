package service

import (
	"context"
	"fmt"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/rag/progress"

	"github.com/google/uuid"
)

// StudentBookResolver picks the book a student studies: the requested one,
// then the one assigned to the student, then the most recently uploaded
// active book of the licence.
type StudentBookResolver struct {
	uowFactory unitofwork.RepositoryFactory
}

var _ progress.Books = (*StudentBookResolver)(nil)

func NewStudentBookResolver(uowFactory unitofwork.RepositoryFactory) *StudentBookResolver {
	return &StudentBookResolver{uowFactory: uowFactory}
}

func (r *StudentBookResolver) ResolveBook(ctx context.Context, studentId, licenseId uuid.UUID, requested *uuid.UUID) (uuid.UUID, error) {
	uow := r.uowFactory.NewUnitOfWork(ctx)

	if requested != nil {
		book, err := activeBook(ctx, uow, *requested, licenseId)
		if err != nil {
			return uuid.Nil, err
		}
		if book == nil {
			return uuid.Nil, ErrBookNotFound
		}
		return book.Id, nil
	}

	student, err := uow.StudentRepository().FindOne(ctx,
		specification.ByID{ID: studentId},
		specification.ByLicenseID{LicenseID: licenseId},
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load student: %w", err)
	}
	if student != nil && !student.Active {
		return uuid.Nil, ErrStudentInactive
	}
	if student != nil && student.BookId != nil {
		book, err := activeBook(ctx, uow, *student.BookId, licenseId)
		if err != nil {
			return uuid.Nil, err
		}
		if book != nil {
			return book.Id, nil
		}
	}

	book, err := uow.BookRepository().FindOne(ctx,
		specification.ByLicenseID{LicenseID: licenseId},
		specification.ActiveOnly{},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load licence book: %w", err)
	}
	if book == nil {
		return uuid.Nil, progress.ErrNoBookAssigned
	}
	return book.Id, nil
}

func activeBook(ctx context.Context, uow unitofwork.UnitOfWork, bookId, licenseId uuid.UUID) (*entity.Book, error) {
	book, err := uow.BookRepository().FindOne(ctx,
		specification.ByID{ID: bookId},
		specification.ByLicenseID{LicenseID: licenseId},
		specification.ActiveOnly{},
	)
	if err != nil {
		return nil, fmt.Errorf("load book: %w", err)
	}
	return book, nil
}
