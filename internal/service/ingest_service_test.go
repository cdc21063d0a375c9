package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/chunking"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/pdf"
	"ai-tutor-be/pkg/topictree"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedJobs struct {
	payloads [][]byte
	err      error
}

func (c *capturedJobs) Publish(_ context.Context, msg []byte) error {
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, msg)
	return nil
}

type watcher struct {
	mu      sync.Mutex
	updates []*entity.IngestionProgress
}

func (w *watcher) Send(_ string, msg interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := msg.(*entity.IngestionProgress); ok {
		cp := *p
		w.updates = append(w.updates, &cp)
	}
}

func (w *watcher) last() *entity.IngestionProgress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updates[len(w.updates)-1]
}

type fixedOutline []topictree.OutlineEntry

func (o fixedOutline) Extract(context.Context, string) []topictree.OutlineEntry {
	return o
}

type ingestFixture struct {
	data     *memDB
	progress *memory.IngestionProgressRepository
	jobs     *capturedJobs
	events   *recordedEvents
	watcher  *watcher
	svc      *ingestService
	license  uuid.UUID
}

func newIngestFixture(t *testing.T, outline fixedOutline) *ingestFixture {
	f := &ingestFixture{
		data:     newMemDB(),
		progress: memory.NewIngestionProgressRepository(time.Hour),
		jobs:     &capturedJobs{},
		events:   &recordedEvents{},
		watcher:  &watcher{},
		license:  uuid.New(),
	}
	pipeline := FragmentPipeline{
		Chunker:   chunking.NewChunker(chunking.EstimateTokenizer{}, 450, 70),
		Embedder:  fixedEmbedder{},
		BatchSize: 10,
	}
	f.svc = NewIngestService(f.data, f.progress, f.jobs, f.events, f.watcher, outline, pipeline, t.TempDir(), 2, logger.NewNopLogger()).(*ingestService)
	return f
}

var pdfBytes = []byte("%PDF-1.4\n%fake body\n%%EOF")

func TestIngestService_Upload(t *testing.T) {
	t.Run("rejects what is not a pdf", func(t *testing.T) {
		f := newIngestFixture(t, nil)

		_, err := f.svc.Upload(context.Background(), f.license, "notes.txt", []byte("plain text"))
		assert.ErrorIs(t, err, pdf.ErrNotPDF)

		_, err = f.svc.Upload(context.Background(), f.license, "empty.pdf", nil)
		assert.ErrorIs(t, err, ErrEmptyUpload)
		assert.Empty(t, f.data.books)
	})

	t.Run("stores the file and queues the job", func(t *testing.T) {
		f := newIngestFixture(t, nil)

		res, err := f.svc.Upload(context.Background(), f.license, "Curso de Go.pdf", pdfBytes)
		require.NoError(t, err)

		book := f.data.books[res.BookId]
		require.NotNil(t, book)
		assert.Equal(t, "Curso de Go", book.Title)
		assert.False(t, book.Active)
		assert.Equal(t, f.license, book.LicenseId)

		stored, err := os.ReadFile(book.PdfPath)
		require.NoError(t, err)
		assert.Equal(t, pdfBytes, stored)
		assert.Equal(t, f.license.String(), filepath.Base(filepath.Dir(book.PdfPath)))

		require.Len(t, f.jobs.payloads, 1)
		var job dto.IngestBookMessage
		require.NoError(t, json.Unmarshal(f.jobs.payloads[0], &job))
		assert.Equal(t, res.JobId, job.JobId)
		assert.Equal(t, book.PdfPath, job.FilePath)

		p, err := f.svc.Progress(context.Background(), f.license, res.JobId)
		require.NoError(t, err)
		assert.Equal(t, entity.IngestionProcessing, p.Status)
	})

	t.Run("queue failure marks the job as failed", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		f.jobs.err = errors.New("bus closed")

		_, err := f.svc.Upload(context.Background(), f.license, "a.pdf", pdfBytes)

		require.Error(t, err)
		assert.Equal(t, entity.IngestionError, f.watcher.last().Status)
		assert.Equal(t, []string{events.TypeBookIngestFailed}, f.events.types())
	})
}

func TestIngestService_ProgressIsScopedToTheLicence(t *testing.T) {
	f := newIngestFixture(t, nil)
	res, err := f.svc.Upload(context.Background(), f.license, "a.pdf", pdfBytes)
	require.NoError(t, err)

	_, err = f.svc.Progress(context.Background(), uuid.New(), res.JobId)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = f.svc.Progress(context.Background(), f.license, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestIngestService_Process(t *testing.T) {
	outline := fixedOutline{
		{Name: "Introducción", Level: 1, Page: 1},
		{Name: "Variables", Level: 2, Page: 2},
		{Name: "Bucles", Level: 2, Page: 3},
	}
	f := newIngestFixture(t, outline)
	f.svc.extract = func([]byte) (*pdf.Document, error) {
		return &pdf.Document{Pages: []string{
			"Este curso enseña Go desde cero.",
			"Una variable guarda un valor. Se declara con var.",
			"Un bucle for repite instrucciones.",
		}}, nil
	}

	res, err := f.svc.Upload(context.Background(), f.license, "go.pdf", pdfBytes)
	require.NoError(t, err)
	var job dto.IngestBookMessage
	require.NoError(t, json.Unmarshal(f.jobs.payloads[0], &job))

	require.NoError(t, f.svc.Process(context.Background(), job))

	book := f.data.books[res.BookId]
	assert.True(t, book.Active)
	assert.Equal(t, 3, book.PageCount)

	require.Len(t, f.data.topics, 3)
	intro, vars := f.data.topics[0], f.data.topics[1]
	assert.Nil(t, intro.ParentId)
	require.NotNil(t, vars.ParentId)
	assert.Equal(t, intro.Id, *vars.ParentId)
	assert.Equal(t, 2, vars.StartPage)
	assert.Equal(t, 2, vars.EndPage)

	require.Len(t, f.data.fragments, 3)
	for i, frag := range f.data.fragments {
		assert.Equal(t, i+1, frag.BookPosition)
	}
	assert.Nil(t, f.data.fragments[0].PreviousFragmentId)
	assert.Equal(t, f.data.fragments[1].Id, *f.data.fragments[0].NextFragmentId)
	assert.Nil(t, f.data.fragments[2].NextFragmentId)

	final, err := f.svc.Progress(context.Background(), f.license, res.JobId)
	require.NoError(t, err)
	assert.Equal(t, entity.IngestionCompleted, final.Status)
	assert.Equal(t, 100, final.Percent)
	assert.Equal(t, entity.IngestionCompleted, f.watcher.last().Status)
	assert.Equal(t, []string{events.TypeBookIngested}, f.events.types())
}

func TestIngestService_ProcessFailures(t *testing.T) {
	t.Run("unreadable file", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		job := dto.IngestBookMessage{JobId: "job-1", BookId: uuid.New(), LicenseId: f.license, FilePath: "/does/not/exist.pdf"}

		err := f.svc.Process(context.Background(), job)

		require.Error(t, err)
		p, err := f.svc.Progress(context.Background(), f.license, "job-1")
		require.NoError(t, err)
		assert.Equal(t, entity.IngestionError, p.Status)
		assert.Equal(t, []string{events.TypeBookIngestFailed}, f.events.types())
	})

	t.Run("no text leaves the book inactive", func(t *testing.T) {
		f := newIngestFixture(t, fixedOutline(topictree.DefaultOutline()))
		f.svc.extract = func([]byte) (*pdf.Document, error) {
			return &pdf.Document{Pages: []string{"", ""}}, nil
		}
		res, err := f.svc.Upload(context.Background(), f.license, "scan.pdf", pdfBytes)
		require.NoError(t, err)
		var job dto.IngestBookMessage
		require.NoError(t, json.Unmarshal(f.jobs.payloads[0], &job))

		err = f.svc.Process(context.Background(), job)

		assert.ErrorIs(t, err, ErrNoFragments)
		assert.False(t, f.data.books[res.BookId].Active)
		assert.Equal(t, entity.IngestionError, f.watcher.last().Status)
	})

	t.Run("panic still ends the job", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		f.svc.extract = func([]byte) (*pdf.Document, error) { panic("corrupt xref") }
		path := filepath.Join(t.TempDir(), "x.pdf")
		require.NoError(t, os.WriteFile(path, pdfBytes, 0o644))

		err := f.svc.Process(context.Background(), dto.IngestBookMessage{JobId: "job-2", LicenseId: f.license, FilePath: path})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "corrupt xref")
		assert.Equal(t, entity.IngestionError, f.watcher.last().Status)
	})
}

func TestBookTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Curso.pdf", "Curso"},
		{"CURSO.PDF", "CURSO"},
		{"dir/sub/Manual de Go.pdf", "Manual de Go"},
		{"sin extension", "sin extension"},
		{".pdf", "Untitled book"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BookTitle(tt.in))
	}
}
