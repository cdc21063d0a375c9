package service

import (
	"context"
	"sort"
	"sync"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/llm"

	"github.com/google/uuid"
)

// memDB is an in-memory stand-in for the tables the services touch. Repository
// methods the services never call are left to the embedded nil interfaces.
type memDB struct {
	mu        sync.Mutex
	books     map[uuid.UUID]*entity.Book
	topics    []*entity.Topic
	fragments []*entity.KnowledgeFragment
	sessions  map[uuid.UUID]*entity.ChatSession
	messages  []*entity.ChatMessage
	students  map[uuid.UUID]*entity.Student
	calls     []string

	// rowLocks stands in for SELECT ... FOR UPDATE on books.
	rowLocks map[uuid.UUID]*sync.Mutex
}

func newMemDB() *memDB {
	return &memDB{
		books:    map[uuid.UUID]*entity.Book{},
		sessions: map[uuid.UUID]*entity.ChatSession{},
		students: map[uuid.UUID]*entity.Student{},
		rowLocks: map[uuid.UUID]*sync.Mutex{},
	}
}

func (d *memDB) rowLock(id uuid.UUID) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		d.rowLocks[id] = l
	}
	return l
}

func (d *memDB) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *memDB) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return &fakeUow{db: d}
}

// fakeUow writes straight through to memDB. Only the row locks taken inside
// a transaction are tracked, and they are released when it ends.
type fakeUow struct {
	unitofwork.UnitOfWork
	db   *memDB
	mu   sync.Mutex
	held []*sync.Mutex
}

func (u *fakeUow) Begin(context.Context) error { return nil }
func (u *fakeUow) Commit() error               { u.release(); return nil }
func (u *fakeUow) Rollback() error             { u.release(); return nil }

func (u *fakeUow) lock(id uuid.UUID) {
	l := u.db.rowLock(id)
	l.Lock()
	u.mu.Lock()
	u.held = append(u.held, l)
	u.mu.Unlock()
}

func (u *fakeUow) release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, l := range u.held {
		l.Unlock()
	}
	u.held = nil
}

func (u *fakeUow) BookRepository() contract.BookRepository { return &bookRepo{db: u.db, uow: u} }
func (u *fakeUow) StudentRepository() contract.StudentRepository {
	return &studentRepo{db: u.db}
}
func (u *fakeUow) TopicRepository() contract.TopicRepository { return &topicRepo{db: u.db} }
func (u *fakeUow) KnowledgeFragmentRepository() contract.KnowledgeFragmentRepository {
	return &fragmentRepo{db: u.db}
}
func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository {
	return &sessionRepo{db: u.db}
}
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository {
	return &messageRepo{db: u.db}
}

// matches understands the few specifications the services use.
func matches(specs []specification.Specification, id, licenseId, bookId, studentId uuid.UUID, active bool) bool {
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			if v.ID != id {
				return false
			}
		case specification.ByLicenseID:
			if v.LicenseID != licenseId {
				return false
			}
		case specification.ByBookID:
			if v.BookID != bookId {
				return false
			}
		case specification.ByStudentID:
			if v.StudentID != studentId {
				return false
			}
		case specification.ActiveOnly:
			if !active {
				return false
			}
		}
	}
	return true
}

type bookRepo struct {
	contract.BookRepository
	db  *memDB
	uow *fakeUow
}

func (r *bookRepo) Create(_ context.Context, b *entity.Book) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *b
	r.db.books[b.Id] = &cp
	return nil
}

func (r *bookRepo) Update(_ context.Context, b *entity.Book) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *b
	r.db.books[b.Id] = &cp
	r.db.record("book.update")
	return nil
}

func (r *bookRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.books, id)
	r.db.record("book.delete")
	return nil
}

func (r *bookRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Book, error) {
	if lockRequested(specs) {
		for _, spec := range specs {
			if byID, ok := spec.(specification.ByID); ok {
				r.uow.lock(byID.ID)
			}
		}
	}
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *bookRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Book
	for _, b := range r.db.books {
		if matches(specs, b.Id, b.LicenseId, b.Id, uuid.Nil, b.Active) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	for _, spec := range specs {
		if order, ok := spec.(specification.OrderBy); ok && order.Desc {
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func lockRequested(specs []specification.Specification) bool {
	for _, spec := range specs {
		if _, ok := spec.(specification.ForUpdate); ok {
			return true
		}
	}
	return false
}

type studentRepo struct {
	contract.StudentRepository
	db *memDB
}

func (r *studentRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Student, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, st := range r.db.students {
		if matches(specs, st.Id, st.LicenseId, uuid.Nil, st.Id, true) {
			cp := *st
			return &cp, nil
		}
	}
	return nil, nil
}

type topicRepo struct {
	contract.TopicRepository
	db *memDB
}

func (r *topicRepo) CreateBulk(_ context.Context, topics []*entity.Topic) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.topics = append(r.db.topics, topics...)
	return nil
}

func (r *topicRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Topic, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *topicRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Topic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Topic
	for _, t := range r.db.topics {
		if matches(specs, t.Id, uuid.Nil, t.BookId, uuid.Nil, true) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *topicRepo) FindInScope(_ context.Context, topicId, licenseId uuid.UUID) (*entity.Topic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.topics {
		if b, ok := r.db.books[t.BookId]; ok && t.Id == topicId && b.LicenseId == licenseId {
			return t, nil
		}
	}
	return nil, nil
}

type fragmentRepo struct {
	contract.KnowledgeFragmentRepository
	db *memDB
}

func (r *fragmentRepo) Create(_ context.Context, f *entity.KnowledgeFragment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.fragments = append(r.db.fragments, f)
	return nil
}

func (r *fragmentRepo) CreateBulk(_ context.Context, fs []*entity.KnowledgeFragment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.fragments = append(r.db.fragments, fs...)
	r.db.record("fragments.create")
	return nil
}

func (r *fragmentRepo) UpdateChainLinks(_ context.Context, id uuid.UUID, prev, next *uuid.UUID, pos int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, f := range r.db.fragments {
		if f.Id == id {
			f.PreviousFragmentId, f.NextFragmentId, f.BookPosition = prev, next, pos
		}
	}
	return nil
}

func (r *fragmentRepo) ClearBookLinks(_ context.Context, bookId uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, f := range r.db.fragments {
		f.PreviousFragmentId, f.NextFragmentId = nil, nil
	}
	r.db.record("fragments.clear_links")
	return nil
}

func (r *fragmentRepo) DeleteByTopicId(_ context.Context, topicId uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.fragments[:0]
	for _, f := range r.db.fragments {
		if f.TopicId != topicId {
			kept = append(kept, f)
		}
	}
	r.db.fragments = kept
	r.db.record("fragments.delete_topic")
	return nil
}

func (r *fragmentRepo) FindBookChain(_ context.Context, bookId uuid.UUID) ([]*entity.KnowledgeFragment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	sequence := map[uuid.UUID]int{}
	for _, t := range r.db.topics {
		if t.BookId == bookId {
			sequence[t.Id] = t.Sequence
		}
	}
	var out []*entity.KnowledgeFragment
	for _, f := range r.db.fragments {
		if _, ok := sequence[f.TopicId]; ok {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if sequence[out[i].TopicId] != sequence[out[j].TopicId] {
			return sequence[out[i].TopicId] < sequence[out[j].TopicId]
		}
		return out[i].AppearanceOrder < out[j].AppearanceOrder
	})
	return out, nil
}

type sessionRepo struct {
	contract.ChatSessionRepository
	db *memDB
}

func (r *sessionRepo) Create(_ context.Context, s *entity.ChatSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sessions[s.Id] = s
	return nil
}

func (r *sessionRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if matches(specs, s.Id, uuid.Nil, uuid.Nil, s.StudentId, true) {
			return s, nil
		}
	}
	return nil, nil
}

type messageRepo struct {
	db *memDB
}

func (r *messageRepo) Create(_ context.Context, m *entity.ChatMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.messages = append(r.db.messages, m)
	return nil
}

func (r *messageRepo) FindLatest(_ context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.ChatMessage
	for _, m := range r.db.messages {
		if m.ChatSessionId == sessionId {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// scriptedLLM answers with a fixed text and keeps the prompts it was given.
type scriptedLLM struct {
	mu      sync.Mutex
	answer  string
	deltas  []string
	prompts [][]llm.Message
}

func (l *scriptedLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, history)
	return l.answer, nil
}

func (l *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return l.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (l *scriptedLLM) Stream(_ context.Context, history []llm.Message, onDelta llm.DeltaFunc, _ ...llm.Option) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, history)
	l.mu.Unlock()
	full := ""
	for _, d := range l.deltas {
		full += d
		if err := onDelta(d); err != nil {
			return full, err
		}
	}
	return full, nil
}

func (l *scriptedLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

// fixedEmbedder returns the same vector for every text.
type fixedEmbedder struct{}

func (fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
