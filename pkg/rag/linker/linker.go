// Package linker turns topic text into persisted knowledge fragments and
// threads them into one previous/next chain per book.
package linker

import (
	"context"
	"errors"
	"fmt"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/chunking"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/topictree"

	"github.com/google/uuid"
)

const DefaultBatchSize = 10

// TopicText is the raw text of one topic plus the outline data used for
// breadcrumbs.
type TopicText struct {
	TopicId    uuid.UUID
	Name       string
	ParentName string
	Level      int
	Order      int
	StartPage  int
	Text       string
}

// Draft is a chunk that has not been embedded or stored yet.
type Draft struct {
	TopicId         uuid.UUID
	TopicName       string
	Content         string
	ContentType     entity.ContentType
	AppearanceOrder int
	Page            int
	Metadata        map[string]interface{}
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Store interface {
	CreateBulk(ctx context.Context, fragments []*entity.KnowledgeFragment) error
	Create(ctx context.Context, fragment *entity.KnowledgeFragment) error
	UpdateChainLinks(ctx context.Context, id uuid.UUID, previous, next *uuid.UUID, bookPosition int) error
}

// Skipped describes a fragment that could not be stored on its own.
type Skipped struct {
	TopicId         uuid.UUID
	AppearanceOrder int
	Reason          string
}

type Report struct {
	Fragments []*entity.KnowledgeFragment
	Skipped   []Skipped
}

func (r *Report) Saved() int {
	return len(r.Fragments)
}

type Linker struct {
	chunker   *chunking.Chunker
	embedder  Embedder
	store     Store
	batchSize int
	logger    logger.ILogger
}

func NewLinker(chunker *chunking.Chunker, embedder Embedder, store Store, batchSize int, log logger.ILogger) *Linker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Linker{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		logger:    log,
	}
}

// Prepare chunks and classifies one topic. It has no side effects and is
// safe to call from several goroutines.
func (l *Linker) Prepare(topic TopicText) []Draft {
	chunks := l.chunker.SplitDetailed(topic.Text)
	breadcrumb := topictree.Breadcrumb(topic.ParentName, topic.Name, topic.Level, topic.Order)

	drafts := make([]Draft, len(chunks))
	for i, c := range chunks {
		contentType := entity.ContentType(classifier.Classify(c.Text))
		drafts[i] = Draft{
			TopicId:         topic.TopicId,
			TopicName:       topic.Name,
			Content:         c.Text,
			ContentType:     contentType,
			AppearanceOrder: i + 1,
			Page:            topic.StartPage,
			Metadata: map[string]interface{}{
				"title":             topic.Name,
				"parent":            topic.ParentName,
				"level":             topic.Level,
				"order":             topic.Order,
				"breadcrumb":        breadcrumb,
				"start_page":        topic.StartPage,
				"chunk_index":       i + 1,
				"total_chunks":      len(chunks),
				"content_type":      string(contentType),
				"tokens":            c.Tokens,
				"overlap_sentences": c.Overlap,
			},
		}
	}
	return drafts
}

// EmbeddingText is what gets embedded for a fragment: the topic name keeps
// short fragments anchored to their section.
func EmbeddingText(topicName, content string) string {
	return fmt.Sprintf("[%s]: %s", topicName, content)
}

// Link persists the drafts of a whole book in emission order and chains them.
// The outer slice is in topic reading order.
func (l *Linker) Link(ctx context.Context, topics [][]Draft) (*Report, error) {
	report, err := l.Persist(ctx, topics)
	if err != nil {
		return nil, err
	}
	if err := l.Relink(ctx, report.Fragments); err != nil {
		return nil, err
	}
	return report, nil
}

// WithStore returns a copy of l that writes to store, typically the
// transactional repository of a unit of work.
func (l *Linker) WithStore(store Store) *Linker {
	cp := *l
	cp.store = store
	return &cp
}

// Persist embeds every draft and stores the resulting fragments.
func (l *Linker) Persist(ctx context.Context, topics [][]Draft) (*Report, error) {
	fragments, err := l.Embed(ctx, topics)
	if err != nil {
		return nil, err
	}
	return l.Save(ctx, fragments)
}

// Embed turns the drafts into unsaved fragments in one batch embedding call.
// It writes nothing, so callers can embed before touching stored data. Book
// positions follow emission order.
func (l *Linker) Embed(ctx context.Context, topics [][]Draft) ([]*entity.KnowledgeFragment, error) {
	var drafts []Draft
	for _, t := range topics {
		drafts = append(drafts, t...)
	}
	if len(drafts) == 0 {
		return nil, nil
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = EmbeddingText(d.TopicName, d.Content)
	}
	vectors, err := l.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed fragments: %w", err)
	}
	if len(vectors) != len(drafts) {
		return nil, fmt.Errorf("embed fragments: got %d vectors for %d texts", len(vectors), len(drafts))
	}

	fragments := make([]*entity.KnowledgeFragment, len(drafts))
	for i, d := range drafts {
		fragments[i] = &entity.KnowledgeFragment{
			Id:              uuid.New(),
			TopicId:         d.TopicId,
			Content:         d.Content,
			ContentType:     d.ContentType,
			AppearanceOrder: d.AppearanceOrder,
			BookPosition:    i + 1,
			Page:            d.Page,
			Metadata:        d.Metadata,
			Embedding:       vectors[i],
		}
	}
	return fragments, nil
}

// Save stores fragments in bounded batches. A failing batch is retried row
// by row so that only the offending fragments are skipped.
func (l *Linker) Save(ctx context.Context, fragments []*entity.KnowledgeFragment) (*Report, error) {
	report := &Report{}
	for start := 0; start < len(fragments); start += l.batchSize {
		end := start + l.batchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		batch := fragments[start:end]

		err := l.store.CreateBulk(ctx, batch)
		if err == nil {
			report.Fragments = append(report.Fragments, batch...)
			continue
		}
		l.logger.Warn("Linker", "Batch insert failed, retrying row by row", map[string]interface{}{
			"batch_start": start,
			"batch_size":  len(batch),
			"error":       err.Error(),
		})

		for _, f := range batch {
			if err := l.store.Create(ctx, f); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				report.Skipped = append(report.Skipped, Skipped{
					TopicId:         f.TopicId,
					AppearanceOrder: f.AppearanceOrder,
					Reason:          err.Error(),
				})
				l.logger.Error("Linker", "Fragment skipped", map[string]interface{}{
					"topic_id":         f.TopicId,
					"appearance_order": f.AppearanceOrder,
					"error":            err.Error(),
				})
				continue
			}
			report.Fragments = append(report.Fragments, f)
		}
	}
	return report, nil
}

// Relink rewrites the previous/next references and book positions of chain,
// which must already be in emission order.
func (l *Linker) Relink(ctx context.Context, chain []*entity.KnowledgeFragment) error {
	for i, f := range chain {
		var prev, next *uuid.UUID
		if i > 0 {
			id := chain[i-1].Id
			prev = &id
		}
		if i < len(chain)-1 {
			id := chain[i+1].Id
			next = &id
		}
		if err := l.store.UpdateChainLinks(ctx, f.Id, prev, next, i+1); err != nil {
			return fmt.Errorf("link fragment %s: %w", f.Id, err)
		}
		f.PreviousFragmentId = prev
		f.NextFragmentId = next
		f.BookPosition = i + 1
	}
	return nil
}

// ErrBrokenChain is returned by VerifyChain.
var ErrBrokenChain = errors.New("fragment chain is broken")

// VerifyChain checks that chain forms exactly one acyclic list covering every
// fragment once.
func VerifyChain(chain []*entity.KnowledgeFragment) error {
	if len(chain) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*entity.KnowledgeFragment, len(chain))
	var head *entity.KnowledgeFragment
	for _, f := range chain {
		byID[f.Id] = f
		if f.PreviousFragmentId == nil {
			if head != nil {
				return fmt.Errorf("%w: more than one head", ErrBrokenChain)
			}
			head = f
		}
	}
	if head == nil {
		return fmt.Errorf("%w: no head", ErrBrokenChain)
	}

	seen := make(map[uuid.UUID]bool, len(chain))
	for cur := head; cur != nil; {
		if seen[cur.Id] {
			return fmt.Errorf("%w: cycle at %s", ErrBrokenChain, cur.Id)
		}
		seen[cur.Id] = true
		if cur.NextFragmentId == nil {
			break
		}
		next, ok := byID[*cur.NextFragmentId]
		if !ok {
			return fmt.Errorf("%w: dangling next %s", ErrBrokenChain, *cur.NextFragmentId)
		}
		cur = next
	}
	if len(seen) != len(chain) {
		return fmt.Errorf("%w: %d of %d fragments reachable", ErrBrokenChain, len(seen), len(chain))
	}
	return nil
}
