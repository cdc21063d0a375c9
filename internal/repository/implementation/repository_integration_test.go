package implementation

import (
	"context"
	"os"
	"testing"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openTestDB connects to a migrated database named by TEST_DB_CONNECTION_STRING
// and skips otherwise.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	dsn := os.Getenv("TEST_DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("TEST_DB_CONNECTION_STRING not set")
	}
	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	return db
}

func unitVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

type seededBook struct {
	license uuid.UUID
	book    *entity.Book
	topics  []*entity.Topic
}

func seedBook(t *testing.T, ctx context.Context, db *gorm.DB, contents ...string) seededBook {
	t.Helper()
	license := &entity.License{Id: uuid.New(), Client: "integration", Active: true, StartsAt: time.Now()}
	require.NoError(t, NewLicenseRepository(db).Create(ctx, license))
	t.Cleanup(func() { db.Exec("DELETE FROM licenses WHERE id = ?", license.Id) })

	book := &entity.Book{Id: uuid.New(), LicenseId: license.Id, Title: "Go", Active: true}
	require.NoError(t, NewBookRepository(db).Create(ctx, book))

	var topics []*entity.Topic
	for i := range contents {
		topics = append(topics, &entity.Topic{
			Id: uuid.New(), BookId: book.Id, Name: "Tema", Level: 1, Order: i + 1, Sequence: i + 1, StartPage: 1, EndPage: 1,
		})
	}
	require.NoError(t, NewTopicRepository(db).CreateBulk(ctx, topics))

	fragments := NewKnowledgeFragmentRepository(db)
	var created []*entity.KnowledgeFragment
	for i, content := range contents {
		created = append(created, &entity.KnowledgeFragment{
			Id: uuid.New(), TopicId: topics[i].Id, Content: content, ContentType: entity.ContentTypeProse,
			AppearanceOrder: 1, BookPosition: i + 1, Embedding: unitVector(i),
			Metadata: map[string]interface{}{"breadcrumb": "Tema"},
		})
	}
	require.NoError(t, fragments.CreateBulk(ctx, created))
	for i, f := range created {
		var prev, next *uuid.UUID
		if i > 0 {
			prev = &created[i-1].Id
		}
		if i < len(created)-1 {
			next = &created[i+1].Id
		}
		require.NoError(t, fragments.UpdateChainLinks(ctx, f.Id, prev, next, i+1))
	}

	return seededBook{license: license.Id, book: book, topics: topics}
}

func TestKnowledgeFragmentRepository_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewKnowledgeFragmentRepository(db)

	mine := seedBook(t, ctx, db, "Las variables guardan valores", "Los bucles repiten instrucciones")
	other := seedBook(t, ctx, db, "Las variables de otro cliente")

	t.Run("chain follows reading order", func(t *testing.T) {
		chain, err := repo.FindBookChain(ctx, mine.book.Id)
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Nil(t, chain[0].PreviousFragmentId)
		assert.Equal(t, chain[1].Id, *chain[0].NextFragmentId)
		assert.Equal(t, "Tema", chain[0].Metadata["breadcrumb"])
	})

	t.Run("hybrid search stays inside the licence", func(t *testing.T) {
		found, err := repo.HybridSearch(ctx, contract.HybridQuery{
			Text:          "variables",
			Embedding:     unitVector(0),
			LicenseId:     mine.license,
			Limit:         5,
			TextWeight:    0.3,
			VectorWeight:  0.7,
			TextSearchCfg: "spanish",
		})
		require.NoError(t, err)
		require.NotEmpty(t, found)
		assert.Equal(t, mine.topics[0].Id, found[0].Fragment.TopicId)
		for _, f := range found {
			assert.Equal(t, mine.book.Id, f.BookId)
		}

		count, err := repo.CountInScope(ctx, other.license, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("accent-insensitive lexical match with a zero vector", func(t *testing.T) {
		found, err := repo.HybridSearch(ctx, contract.HybridQuery{
			Text:          "búcles",
			Embedding:     make([]float32, 1536),
			LicenseId:     mine.license,
			Limit:         5,
			MinScore:      0.0001,
			TextWeight:    1,
			TextSearchCfg: "spanish",
		})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, mine.topics[1].Id, found[0].Fragment.TopicId)
	})

	t.Run("clearing links allows deleting the book", func(t *testing.T) {
		require.NoError(t, repo.ClearBookLinks(ctx, mine.book.Id))
		require.NoError(t, NewBookRepository(db).Delete(ctx, mine.book.Id))

		chain, err := repo.FindBookChain(ctx, mine.book.Id)
		require.NoError(t, err)
		assert.Empty(t, chain)
	})
}

func TestProgressCursorRepository_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seeded := seedBook(t, ctx, db, "uno")

	student := &entity.Student{Id: uuid.New(), LicenseId: seeded.license, Name: "Ana", Email: uuid.NewString() + "@example.com", Active: true}
	require.NoError(t, NewStudentRepository(db).Create(ctx, student))

	cursors := NewProgressCursorRepository(db)
	first := &entity.ProgressCursor{Id: uuid.New(), StudentId: student.Id, TopicId: seeded.topics[0].Id, LastFragmentId: uuid.New(), LastOrder: 1}
	got, created, err := cursors.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	again := &entity.ProgressCursor{Id: uuid.New(), StudentId: student.Id, TopicId: seeded.topics[0].Id, LastFragmentId: uuid.New(), LastOrder: 1}
	existing, created, err := cursors.CreateIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, got.Id, existing.Id)

	ok, err := cursors.Advance(ctx, got.Id, uuid.New(), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// a stale advance loses
	ok, err = cursors.Advance(ctx, got.Id, uuid.New(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
