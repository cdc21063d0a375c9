package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/chunking"
	"ai-tutor-be/pkg/rag/linker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookFixture struct {
	data    *memDB
	svc     IBookService
	license uuid.UUID
	book    *entity.Book
	topics  []*entity.Topic
}

// newBookFixture holds one book with a chapter and two sections, each
// section carrying two linked fragments.
func newBookFixture() *bookFixture {
	f := &bookFixture{data: newMemDB(), license: uuid.New()}
	f.book = &entity.Book{Id: uuid.New(), LicenseId: f.license, Title: "Go", Active: true, CreatedAt: time.Now()}
	f.data.books[f.book.Id] = f.book

	chapter := &entity.Topic{Id: uuid.New(), BookId: f.book.Id, Name: "Fundamentos", Level: 1, Order: 1, Sequence: 1}
	vars := &entity.Topic{Id: uuid.New(), BookId: f.book.Id, ParentId: &chapter.Id, Name: "Variables", Level: 2, Order: 1, Sequence: 2}
	loops := &entity.Topic{Id: uuid.New(), BookId: f.book.Id, ParentId: &chapter.Id, Name: "Bucles", Level: 2, Order: 2, Sequence: 3}
	f.topics = []*entity.Topic{chapter, vars, loops}
	f.data.topics = f.topics

	for _, topic := range []*entity.Topic{vars, loops} {
		for order := 1; order <= 2; order++ {
			f.data.fragments = append(f.data.fragments, &entity.KnowledgeFragment{
				Id:              uuid.New(),
				TopicId:         topic.Id,
				Content:         topic.Name,
				AppearanceOrder: order,
			})
		}
	}

	pipeline := FragmentPipeline{
		Chunker:   chunking.NewChunker(chunking.EstimateTokenizer{}, 8, 2),
		Embedder:  fixedEmbedder{},
		BatchSize: 10,
	}
	f.svc = NewBookService(f.data, pipeline, logger.NewNopLogger())
	return f
}

func TestBookService_Topics(t *testing.T) {
	f := newBookFixture()

	forest, err := f.svc.Topics(context.Background(), f.license, f.book.Id)

	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "Fundamentos", forest[0].Name)
	require.Len(t, forest[0].Children, 2)
	assert.Equal(t, "Variables", forest[0].Children[0].Name)
	assert.Equal(t, "Bucles", forest[0].Children[1].Name)
	assert.Empty(t, forest[0].Children[0].Children)

	_, err = f.svc.Topics(context.Background(), uuid.New(), f.book.Id)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestTopicForest_OrphanBecomesRoot(t *testing.T) {
	missing := uuid.New()
	forest := TopicForest([]*entity.Topic{
		{Id: uuid.New(), Name: "a", Sequence: 1},
		{Id: uuid.New(), Name: "b", ParentId: &missing, Sequence: 2},
	})
	require.Len(t, forest, 2)
	assert.Equal(t, "b", forest[1].Name)
}

func TestBookService_UpdateAndList(t *testing.T) {
	f := newBookFixture()

	res, err := f.svc.Update(context.Background(), f.license, f.book.Id, &dto.UpdateBookRequest{Title: "Go avanzado"})
	require.NoError(t, err)
	assert.Equal(t, "Go avanzado", res.Title)
	assert.NotNil(t, res.UpdatedAt)

	list, err := f.svc.List(context.Background(), f.license)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Go avanzado", list[0].Title)

	list, err = f.svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBookService_DeleteClearsLinksFirst(t *testing.T) {
	f := newBookFixture()

	require.NoError(t, f.svc.Delete(context.Background(), f.license, f.book.Id))

	assert.Equal(t, []string{"fragments.clear_links", "book.delete"}, f.data.calls)
	assert.NotContains(t, f.data.books, f.book.Id)

	err := f.svc.Delete(context.Background(), f.license, f.book.Id)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookService_UpdateTopicContent(t *testing.T) {
	f := newBookFixture()
	vars := f.topics[1]

	res, err := f.svc.UpdateTopicContent(context.Background(), f.license, vars.Id, &dto.UpdateTopicContentRequest{
		Content: "Una variable guarda un valor. Se declara con var. Go infiere el tipo con dos puntos igual.",
	})
	require.NoError(t, err)
	assert.Equal(t, vars.Id, res.TopicId)
	assert.Greater(t, res.Fragments, 1)
	assert.Equal(t, []string{"fragments.clear_links", "fragments.delete_topic", "fragments.create"}, f.data.calls)

	chain, err := f.data.NewUnitOfWork(context.Background()).KnowledgeFragmentRepository().FindBookChain(context.Background(), f.book.Id)
	require.NoError(t, err)
	require.NoError(t, linker.VerifyChain(chain))
	assert.Len(t, chain, res.Fragments+2)

	// the edited topic comes first in reading order
	assert.Equal(t, vars.Id, chain[0].TopicId)
	assert.Equal(t, "Bucles", chain[len(chain)-1].Content)
	for i, frag := range chain {
		assert.Equal(t, i+1, frag.BookPosition)
	}
	assert.Equal(t, "Fundamentos > Variables (level 2, order 1)", chain[0].Metadata["breadcrumb"])

	_, err = f.svc.UpdateTopicContent(context.Background(), uuid.New(), vars.Id, &dto.UpdateTopicContentRequest{Content: "x"})
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func TestBookService_UpdateTopicContentKeepsChainWhenEmbeddingFails(t *testing.T) {
	f := newBookFixture()
	ctx := context.Background()
	vars, loops := f.topics[1], f.topics[2]

	_, err := f.svc.UpdateTopicContent(ctx, f.license, vars.Id, &dto.UpdateTopicContentRequest{Content: "Una variable guarda un valor."})
	require.NoError(t, err)
	before, err := f.data.NewUnitOfWork(ctx).KnowledgeFragmentRepository().FindBookChain(ctx, f.book.Id)
	require.NoError(t, err)
	calls := len(f.data.calls)

	broken := NewBookService(f.data, FragmentPipeline{
		Chunker:   chunking.NewChunker(chunking.EstimateTokenizer{}, 8, 2),
		Embedder:  failingEmbedder{},
		BatchSize: 10,
	}, logger.NewNopLogger())

	tests := []struct {
		name  string
		topic uuid.UUID
	}{
		{"edited topic", vars.Id},
		{"untouched topic", loops.Id},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := broken.UpdateTopicContent(ctx, f.license, tt.topic, &dto.UpdateTopicContentRequest{Content: "Texto nuevo que no se guarda."})
			require.ErrorContains(t, err, "provider down")

			after, err := f.data.NewUnitOfWork(ctx).KnowledgeFragmentRepository().FindBookChain(ctx, f.book.Id)
			require.NoError(t, err)
			require.NoError(t, linker.VerifyChain(after))
			assert.Equal(t, fragmentIds(before), fragmentIds(after))
			assert.Len(t, f.data.calls, calls, "nothing is written before the new text is embedded")
		})
	}
}

func TestBookService_ConcurrentTopicOverwrites(t *testing.T) {
	f := newBookFixture()
	ctx := context.Background()
	vars, loops := f.topics[1], f.topics[2]

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, req := range []struct {
		topic   uuid.UUID
		content string
	}{
		{vars.Id, "Una variable guarda un valor. Se declara con var."},
		{loops.Id, "Go solo tiene for. Sirve como while. Range recorre colecciones."},
	} {
		wg.Add(1)
		go func(i int, topic uuid.UUID, content string) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateTopicContent(ctx, f.license, topic, &dto.UpdateTopicContentRequest{Content: content})
		}(i, req.topic, req.content)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	chain, err := f.data.NewUnitOfWork(ctx).KnowledgeFragmentRepository().FindBookChain(ctx, f.book.Id)
	require.NoError(t, err)
	require.NoError(t, linker.VerifyChain(chain))
	for i, frag := range chain {
		assert.Equal(t, i+1, frag.BookPosition)
	}
	assert.Equal(t, vars.Id, chain[0].TopicId)
	assert.Equal(t, loops.Id, chain[len(chain)-1].TopicId)
}

func fragmentIds(chain []*entity.KnowledgeFragment) []uuid.UUID {
	ids := make([]uuid.UUID, len(chain))
	for i, f := range chain {
		ids[i] = f.Id
	}
	return ids
}
