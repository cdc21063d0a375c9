package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/chunking"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/pdf"
	"ai-tutor-be/pkg/rag/linker"
	"ai-tutor-be/pkg/rag/outline"
	"ai-tutor-be/pkg/topictree"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrNoFragments = errors.New("ingestion produced no fragments")

// ProgressNotifier pushes live ingestion updates to whoever watches a job.
type ProgressNotifier interface {
	Send(jobID string, msg interface{})
}

type OutlineExtractor interface {
	Extract(ctx context.Context, indexText string) []topictree.OutlineEntry
}

// FragmentPipeline holds what every linker needs besides its store.
type FragmentPipeline struct {
	Chunker   *chunking.Chunker
	Embedder  linker.Embedder
	BatchSize int
}

func (p FragmentPipeline) Linker(store linker.Store, log logger.ILogger) *linker.Linker {
	return linker.NewLinker(p.Chunker, p.Embedder, store, p.BatchSize, log)
}

type IIngestService interface {
	Upload(ctx context.Context, licenseId uuid.UUID, filename string, data []byte) (*dto.UploadBookResponse, error)
	Progress(ctx context.Context, licenseId uuid.UUID, jobId string) (*entity.IngestionProgress, error)
	Process(ctx context.Context, msg dto.IngestBookMessage) error
}

type ingestService struct {
	uowFactory unitofwork.RepositoryFactory
	progress   contract.IngestionProgressRepository
	publisher  IPublisherService
	events     IEventPublisher
	notifier   ProgressNotifier
	outline    OutlineExtractor
	pipeline   FragmentPipeline
	uploadDir  string
	workers    int
	extract    func([]byte) (*pdf.Document, error)
	logger     logger.ILogger
}

func NewIngestService(
	uowFactory unitofwork.RepositoryFactory,
	progress contract.IngestionProgressRepository,
	publisher IPublisherService,
	eventPublisher IEventPublisher,
	notifier ProgressNotifier,
	outlineExtractor OutlineExtractor,
	pipeline FragmentPipeline,
	uploadDir string,
	workers int,
	log logger.ILogger,
) IIngestService {
	if workers <= 0 {
		workers = 1
	}
	return &ingestService{
		uowFactory: uowFactory,
		progress:   progress,
		publisher:  publisher,
		events:     eventPublisher,
		notifier:   notifier,
		outline:    outlineExtractor,
		pipeline:   pipeline,
		uploadDir:  uploadDir,
		workers:    workers,
		extract:    pdf.Extract,
		logger:     log,
	}
}

func (s *ingestService) Upload(ctx context.Context, licenseId uuid.UUID, filename string, data []byte) (*dto.UploadBookResponse, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if !pdf.IsPDF(data) {
		return nil, pdf.ErrNotPDF
	}

	book := &entity.Book{
		Id:          uuid.New(),
		LicenseId:   licenseId,
		Title:       BookTitle(filename),
		Description: fmt.Sprintf("Uploaded at %s", time.Now().Format("2006-01-02 15:04")),
		CreatedAt:   time.Now(),
	}

	dir := filepath.Join(s.uploadDir, licenseId.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	book.PdfPath = filepath.Join(dir, book.Id.String()+".pdf")
	if err := os.WriteFile(book.PdfPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.BookRepository().Create(ctx, book); err != nil {
		_ = os.Remove(book.PdfPath)
		return nil, err
	}

	jobId := uuid.NewString()
	s.report(ctx, &entity.IngestionProgress{
		JobId:     jobId,
		BookId:    book.Id,
		LicenseId: licenseId,
		Status:    entity.IngestionProcessing,
		Message:   "Queued",
		Filename:  filename,
	})

	payload, err := json.Marshal(dto.IngestBookMessage{
		JobId:     jobId,
		BookId:    book.Id,
		LicenseId: licenseId,
		FilePath:  book.PdfPath,
		Filename:  filename,
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.fail(ctx, dto.IngestBookMessage{JobId: jobId, BookId: book.Id, LicenseId: licenseId, Filename: filename}, err)
		return nil, fmt.Errorf("queue ingestion: %w", err)
	}

	s.logger.Info("IngestService", "Upload queued", map[string]interface{}{
		"job_id":     jobId,
		"book_id":    book.Id,
		"license_id": licenseId,
		"bytes":      len(data),
	})
	return &dto.UploadBookResponse{JobId: jobId, BookId: book.Id}, nil
}

func (s *ingestService) Progress(ctx context.Context, licenseId uuid.UUID, jobId string) (*entity.IngestionProgress, error) {
	p, err := s.progress.Get(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if p == nil || p.LicenseId != licenseId {
		return nil, ErrJobNotFound
	}
	return p, nil
}

// Process runs one ingestion job to a terminal state. A failure marks the
// job as errored and leaves the book inactive.
func (s *ingestService) Process(ctx context.Context, msg dto.IngestBookMessage) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
		}
		if err != nil {
			s.fail(ctx, msg, err)
		}
	}()

	s.step(ctx, msg, 5, "Reading PDF")
	data, err := os.ReadFile(msg.FilePath)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	doc, err := s.extract(data)
	if err != nil {
		return err
	}

	s.step(ctx, msg, 15, "Extracting outline")
	entries := s.outline.Extract(ctx, doc.Range(1, outline.IndexPages))
	nodes := topictree.Build(entries)
	ranges := topictree.PageRanges(nodes, doc.PageCount())

	topics := make([]*entity.Topic, len(nodes))
	for i, n := range nodes {
		topics[i] = &entity.Topic{
			Id:        uuid.New(),
			BookId:    msg.BookId,
			Name:      n.Name,
			Level:     n.Level,
			Order:     n.Order,
			Sequence:  n.Sequence,
			StartPage: ranges[i].Start,
			EndPage:   ranges[i].End,
			CreatedAt: time.Now(),
		}
	}
	for i, n := range nodes {
		if n.ParentIndex >= 0 {
			parentId := topics[n.ParentIndex].Id
			topics[i].ParentId = &parentId
		}
	}

	s.step(ctx, msg, 25, fmt.Sprintf("Saving %d topics", len(topics)))
	if err := s.saveTopics(ctx, msg, topics, doc.PageCount()); err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	lk := s.pipeline.Linker(uow.KnowledgeFragmentRepository(), s.logger)

	drafts, err := s.prepare(ctx, msg, lk, nodes, topics, ranges, doc)
	if err != nil {
		return err
	}

	s.step(ctx, msg, 70, "Embedding fragments")
	embedded, err := lk.Embed(ctx, drafts)
	if err != nil {
		return err
	}

	s.step(ctx, msg, 90, "Linking fragments")
	report, err := s.link(ctx, uow, lk, msg.BookId, embedded)
	if err != nil {
		return err
	}

	s.report(ctx, &entity.IngestionProgress{
		JobId:     msg.JobId,
		BookId:    msg.BookId,
		LicenseId: msg.LicenseId,
		Status:    entity.IngestionCompleted,
		Message:   fmt.Sprintf("%d topics, %d fragments, %d skipped", len(topics), report.Saved(), len(report.Skipped)),
		Percent:   100,
		Filename:  msg.Filename,
	})
	s.publish(ctx, events.NewBookIngested(msg.JobId, msg.BookId, msg.LicenseId, len(topics), report.Saved(), len(report.Skipped)))

	s.logger.Info("IngestService", "Book ingested", map[string]interface{}{
		"job_id":    msg.JobId,
		"book_id":   msg.BookId,
		"topics":    len(topics),
		"fragments": report.Saved(),
		"skipped":   len(report.Skipped),
		"duration":  time.Since(start).String(),
	})
	return nil
}

// link stores the embedded fragments, chains them and activates the book in
// one transaction under the book lock.
func (s *ingestService) link(ctx context.Context, uow unitofwork.UnitOfWork, lk *linker.Linker, bookId uuid.UUID, embedded []*entity.KnowledgeFragment) (*linker.Report, error) {
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	book, err := lockBook(ctx, uow, bookId)
	if err != nil {
		return nil, err
	}
	lk = lk.WithStore(uow.KnowledgeFragmentRepository())
	report, err := lk.Save(ctx, embedded)
	if err != nil {
		return nil, err
	}
	if report.Saved() == 0 {
		return nil, ErrNoFragments
	}
	if err := lk.Relink(ctx, report.Fragments); err != nil {
		return nil, err
	}

	book.Active = true
	if err := uow.BookRepository().Update(ctx, book); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ingestService) saveTopics(ctx context.Context, msg dto.IngestBookMessage, topics []*entity.Topic, pageCount int) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	book, err := uow.BookRepository().FindOne(ctx, specification.ByID{ID: msg.BookId})
	if err != nil {
		return err
	}
	if book == nil {
		return ErrBookNotFound
	}
	if err := uow.TopicRepository().CreateBulk(ctx, topics); err != nil {
		return fmt.Errorf("save topics: %w", err)
	}
	book.PageCount = pageCount
	if err := uow.BookRepository().Update(ctx, book); err != nil {
		return err
	}
	return uow.Commit()
}

// prepare chunks every topic concurrently. The result keeps reading order.
func (s *ingestService) prepare(
	ctx context.Context,
	msg dto.IngestBookMessage,
	lk *linker.Linker,
	nodes []topictree.Node,
	topics []*entity.Topic,
	ranges []topictree.PageRange,
	doc *pdf.Document,
) ([][]linker.Draft, error) {
	drafts := make([][]linker.Draft, len(topics))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range topics {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parentName := ""
			if p := nodes[i].ParentIndex; p >= 0 {
				parentName = topics[p].Name
			}
			drafts[i] = lk.Prepare(linker.TopicText{
				TopicId:    topics[i].Id,
				Name:       topics[i].Name,
				ParentName: parentName,
				Level:      topics[i].Level,
				Order:      topics[i].Order,
				StartPage:  ranges[i].Start,
				Text:       pdf.Clean(doc.Range(ranges[i].Start, ranges[i].End)),
			})

			n := int(done.Add(1))
			s.step(ctx, msg, 25+n*40/len(topics), fmt.Sprintf("Chunked %d/%d topics", n, len(topics)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *ingestService) step(ctx context.Context, msg dto.IngestBookMessage, percent int, text string) {
	s.report(ctx, &entity.IngestionProgress{
		JobId:     msg.JobId,
		BookId:    msg.BookId,
		LicenseId: msg.LicenseId,
		Status:    entity.IngestionProcessing,
		Message:   text,
		Percent:   percent,
		Filename:  msg.Filename,
	})
}

func (s *ingestService) fail(ctx context.Context, msg dto.IngestBookMessage, cause error) {
	s.logger.Error("IngestService", "Ingestion failed", map[string]interface{}{
		"job_id":  msg.JobId,
		"book_id": msg.BookId,
		"error":   cause.Error(),
	})
	s.report(ctx, &entity.IngestionProgress{
		JobId:     msg.JobId,
		BookId:    msg.BookId,
		LicenseId: msg.LicenseId,
		Status:    entity.IngestionError,
		Message:   cause.Error(),
		Filename:  msg.Filename,
	})
	s.publish(ctx, events.NewBookIngestFailed(msg.JobId, msg.BookId, msg.LicenseId, cause.Error()))
}

// report never fails the job: a lost progress update only affects polling.
func (s *ingestService) report(ctx context.Context, p *entity.IngestionProgress) {
	p.UpdatedAt = time.Now()
	if err := s.progress.Save(context.WithoutCancel(ctx), p); err != nil {
		s.logger.Warn("IngestService", "Failed to save progress", map[string]interface{}{"job_id": p.JobId, "error": err.Error()})
	}
	if s.notifier != nil {
		s.notifier.Send(p.JobId, p)
	}
}

func (s *ingestService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("IngestService", "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}

// BookTitle derives a title from an uploaded file name.
func BookTitle(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	base = strings.TrimSpace(base)
	if base == "" || base == "." {
		return "Untitled book"
	}
	return base
}
