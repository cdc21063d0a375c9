package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/rag/linker"

	"github.com/google/uuid"
)

type IBookService interface {
	List(ctx context.Context, licenseId uuid.UUID) ([]*dto.BookResponse, error)
	Topics(ctx context.Context, licenseId, bookId uuid.UUID) ([]*dto.TopicNode, error)
	Update(ctx context.Context, licenseId, bookId uuid.UUID, req *dto.UpdateBookRequest) (*dto.BookResponse, error)
	Delete(ctx context.Context, licenseId, bookId uuid.UUID) error
	UpdateTopicContent(ctx context.Context, licenseId, topicId uuid.UUID, req *dto.UpdateTopicContentRequest) (*dto.UpdateTopicContentResponse, error)
}

type bookService struct {
	uowFactory unitofwork.RepositoryFactory
	pipeline   FragmentPipeline
	logger     logger.ILogger
}

func NewBookService(uowFactory unitofwork.RepositoryFactory, pipeline FragmentPipeline, log logger.ILogger) IBookService {
	return &bookService{
		uowFactory: uowFactory,
		pipeline:   pipeline,
		logger:     log,
	}
}

func (s *bookService) List(ctx context.Context, licenseId uuid.UUID) ([]*dto.BookResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	books, err := uow.BookRepository().FindAll(ctx,
		specification.ByLicenseID{LicenseID: licenseId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.BookResponse, 0, len(books))
	for _, b := range books {
		res = append(res, toBookResponse(b))
	}
	return res, nil
}

func (s *bookService) Topics(ctx context.Context, licenseId, bookId uuid.UUID) ([]*dto.TopicNode, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findBook(ctx, uow, licenseId, bookId); err != nil {
		return nil, err
	}

	topics, err := uow.TopicRepository().FindAll(ctx,
		specification.ByBookID{BookID: bookId},
		specification.InReadingOrder{},
	)
	if err != nil {
		return nil, err
	}
	return TopicForest(topics), nil
}

func (s *bookService) Update(ctx context.Context, licenseId, bookId uuid.UUID, req *dto.UpdateBookRequest) (*dto.BookResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	book, err := s.findBook(ctx, uow, licenseId, bookId)
	if err != nil {
		return nil, err
	}

	book.Title = req.Title
	book.Description = req.Description
	now := time.Now()
	book.UpdatedAt = &now
	if err := uow.BookRepository().Update(ctx, book); err != nil {
		return nil, err
	}
	return toBookResponse(book), nil
}

// Delete clears the fragment chain first so the cascading delete never trips
// over previous/next references between fragments.
func (s *bookService) Delete(ctx context.Context, licenseId, bookId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	book, err := s.findBook(ctx, uow, licenseId, bookId)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.KnowledgeFragmentRepository().ClearBookLinks(ctx, bookId); err != nil {
		return fmt.Errorf("clear fragment links: %w", err)
	}
	if err := uow.BookRepository().Delete(ctx, bookId); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if book.PdfPath != "" {
		if err := os.Remove(book.PdfPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("BookService", "Failed to remove stored PDF", map[string]interface{}{"book_id": bookId, "error": err.Error()})
		}
	}
	s.logger.Info("BookService", "Book deleted", map[string]interface{}{"book_id": bookId, "license_id": licenseId})
	return nil
}

// UpdateTopicContent replaces the fragments of one topic with the edited
// text and rebuilds the book-wide chain around them. The new text is
// embedded before anything is deleted; the swap and the relink then run in
// one transaction holding the book lock.
func (s *bookService) UpdateTopicContent(ctx context.Context, licenseId, topicId uuid.UUID, req *dto.UpdateTopicContentRequest) (*dto.UpdateTopicContentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	topic, err := uow.TopicRepository().FindInScope(ctx, topicId, licenseId)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ErrTopicNotFound
	}

	parentName := ""
	if topic.ParentId != nil {
		parent, err := uow.TopicRepository().FindOne(ctx, specification.ByID{ID: *topic.ParentId})
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parentName = parent.Name
		}
	}

	lk := s.pipeline.Linker(uow.KnowledgeFragmentRepository(), s.logger)
	drafts := lk.Prepare(linker.TopicText{
		TopicId:    topic.Id,
		Name:       topic.Name,
		ParentName: parentName,
		Level:      topic.Level,
		Order:      topic.Order,
		StartPage:  topic.StartPage,
		Text:       req.Content,
	})
	embedded, err := lk.Embed(ctx, [][]linker.Draft{drafts})
	if err != nil {
		return nil, err
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if _, err := lockBook(ctx, uow, topic.BookId); err != nil {
		return nil, err
	}
	fragments := uow.KnowledgeFragmentRepository()
	lk = lk.WithStore(fragments)

	if err := fragments.ClearBookLinks(ctx, topic.BookId); err != nil {
		return nil, fmt.Errorf("clear fragment links: %w", err)
	}
	if err := fragments.DeleteByTopicId(ctx, topic.Id); err != nil {
		return nil, fmt.Errorf("delete topic fragments: %w", err)
	}
	report, err := lk.Save(ctx, embedded)
	if err != nil {
		return nil, err
	}
	chain, err := fragments.FindBookChain(ctx, topic.BookId)
	if err != nil {
		return nil, err
	}
	if err := lk.Relink(ctx, chain); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("BookService", "Topic content replaced", map[string]interface{}{
		"topic_id":  topic.Id,
		"fragments": report.Saved(),
		"skipped":   len(report.Skipped),
		"chain":     len(chain),
	})
	return &dto.UpdateTopicContentResponse{
		TopicId:   topic.Id,
		Fragments: report.Saved(),
		Skipped:   len(report.Skipped),
	}, nil
}

// lockBook takes the row lock that makes the caller the only writer of the
// book's fragment chain until the transaction of uow ends.
func lockBook(ctx context.Context, uow unitofwork.UnitOfWork, bookId uuid.UUID) (*entity.Book, error) {
	book, err := uow.BookRepository().FindOne(ctx, specification.ByID{ID: bookId}, specification.ForUpdate{})
	if err != nil {
		return nil, fmt.Errorf("lock book: %w", err)
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

func (s *bookService) findBook(ctx context.Context, uow unitofwork.UnitOfWork, licenseId, bookId uuid.UUID) (*entity.Book, error) {
	book, err := uow.BookRepository().FindOne(ctx,
		specification.ByID{ID: bookId},
		specification.ByLicenseID{LicenseID: licenseId},
	)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

// TopicForest nests topics under their parents. Input must be in reading
// order; children keep that order.
func TopicForest(topics []*entity.Topic) []*dto.TopicNode {
	nodes := make(map[uuid.UUID]*dto.TopicNode, len(topics))
	roots := make([]*dto.TopicNode, 0)
	for _, t := range topics {
		nodes[t.Id] = &dto.TopicNode{
			Id:        t.Id,
			Name:      t.Name,
			Level:     t.Level,
			Order:     t.Order,
			Sequence:  t.Sequence,
			StartPage: t.StartPage,
			EndPage:   t.EndPage,
			Children:  []*dto.TopicNode{},
		}
	}
	for _, t := range topics {
		node := nodes[t.Id]
		if t.ParentId != nil {
			if parent, ok := nodes[*t.ParentId]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

func toBookResponse(b *entity.Book) *dto.BookResponse {
	return &dto.BookResponse{
		Id:          b.Id,
		Title:       b.Title,
		Description: b.Description,
		PageCount:   b.PageCount,
		Active:      b.Active,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}
