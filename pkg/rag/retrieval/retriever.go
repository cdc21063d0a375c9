// Package retrieval selects the fragments that ground an answer: the whole
// current topic plus a licence-scoped hybrid search, presented in reading
// order.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"

	"github.com/google/uuid"
)

type Status string

const (
	StatusGrounded     Status = "grounded"
	StatusLowRelevance Status = "low_relevance"
	StatusNoKnowledge  Status = "no_knowledge"
)

// LocalScore is the score given to fragments of the student's current topic.
const LocalScore = 1.0

var ErrMissingTenant = errors.New("retrieval: licence scope is required")

type Scope struct {
	LicenseId uuid.UUID
	BookId    *uuid.UUID
}

type Query struct {
	Text           string
	Scope          Scope
	CurrentTopicId *uuid.UUID
}

type Result struct {
	Status    Status
	Fragments []*entity.ScoredFragment
}

func (r *Result) Grounded() bool {
	return r.Status == StatusGrounded
}

// SourceIds lists the fragment ids in presentation order.
func (r *Result) SourceIds() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Fragments))
	for i, f := range r.Fragments {
		ids[i] = f.Fragment.Id
	}
	return ids
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	FindTopicFragmentsInScope(ctx context.Context, topicId, licenseId uuid.UUID, bookId *uuid.UUID) ([]*entity.ScoredFragment, error)
	HybridSearch(ctx context.Context, q contract.HybridQuery) ([]*entity.ScoredFragment, error)
	CountInScope(ctx context.Context, licenseId uuid.UUID, bookId *uuid.UUID) (int64, error)
}

type Config struct {
	TopK             int
	MinScore         float64
	TextWeight       float64
	VectorWeight     float64
	TextSearchConfig string
}

func DefaultConfig() Config {
	return Config{
		TopK:             5,
		MinScore:         0.25,
		TextWeight:       0.3,
		VectorWeight:     0.7,
		TextSearchConfig: "spanish",
	}
}

type Retriever struct {
	embedder Embedder
	store    Store
	cfg      Config
	logger   logger.ILogger
}

func NewRetriever(embedder Embedder, store Store, cfg Config, log logger.ILogger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   log,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Result, error) {
	if q.Scope.LicenseId == uuid.Nil {
		return nil, ErrMissingTenant
	}

	var local []*entity.ScoredFragment
	if q.CurrentTopicId != nil {
		var err error
		local, err = r.store.FindTopicFragmentsInScope(ctx, *q.CurrentTopicId, q.Scope.LicenseId, q.Scope.BookId)
		if err != nil {
			return nil, fmt.Errorf("load current topic: %w", err)
		}
		for _, f := range local {
			f.Score = LocalScore
		}
	}

	vector, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	found, err := r.store.HybridSearch(ctx, contract.HybridQuery{
		Text:          q.Text,
		Embedding:     vector,
		LicenseId:     q.Scope.LicenseId,
		BookId:        q.Scope.BookId,
		Limit:         r.cfg.TopK,
		MinScore:      r.cfg.MinScore,
		TextWeight:    r.cfg.TextWeight,
		VectorWeight:  r.cfg.VectorWeight,
		TextSearchCfg: r.cfg.TextSearchConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	merged := Merge(local, found)
	r.logger.Debug("Retriever", "Candidates merged", map[string]interface{}{
		"license_id": q.Scope.LicenseId,
		"local":      len(local),
		"search":     len(found),
		"merged":     len(merged),
	})

	if len(merged) > 0 {
		return &Result{Status: StatusGrounded, Fragments: merged}, nil
	}

	total, err := r.store.CountInScope(ctx, q.Scope.LicenseId, q.Scope.BookId)
	if err != nil {
		return nil, fmt.Errorf("count knowledge: %w", err)
	}
	if total == 0 {
		return &Result{Status: StatusNoKnowledge}, nil
	}
	return &Result{Status: StatusLowRelevance}, nil
}

// Merge deduplicates by fragment id, keeping the higher score, and sorts the
// result into reading order: book, then position in the book.
func Merge(groups ...[]*entity.ScoredFragment) []*entity.ScoredFragment {
	byID := make(map[uuid.UUID]*entity.ScoredFragment)
	var out []*entity.ScoredFragment
	for _, group := range groups {
		for _, f := range group {
			if f == nil || f.Fragment == nil {
				continue
			}
			if existing, ok := byID[f.Fragment.Id]; ok {
				if f.Score > existing.Score {
					existing.Score = f.Score
				}
				continue
			}
			byID[f.Fragment.Id] = f
			out = append(out, f)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BookId != b.BookId {
			return a.BookId.String() < b.BookId.String()
		}
		if a.Fragment.BookPosition != b.Fragment.BookPosition {
			return a.Fragment.BookPosition < b.Fragment.BookPosition
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.Fragment.AppearanceOrder < b.Fragment.AppearanceOrder
	})
	return out
}
