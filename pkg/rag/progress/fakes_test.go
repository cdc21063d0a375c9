package progress

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/pkg/store"

	"github.com/google/uuid"
)

// library is an in-memory book catalogue shared by the fakes below.
type library struct {
	mu        sync.Mutex
	licenseOf map[uuid.UUID]uuid.UUID // book -> licence
	topics    []*entity.Topic
	fragments map[uuid.UUID][]*entity.KnowledgeFragment // topic -> ordered fragments
}

func newLibrary() *library {
	return &library{
		licenseOf: map[uuid.UUID]uuid.UUID{},
		fragments: map[uuid.UUID][]*entity.KnowledgeFragment{},
	}
}

func (l *library) addBook(license uuid.UUID) uuid.UUID {
	id := uuid.New()
	l.licenseOf[id] = license
	return id
}

func (l *library) addTopic(book uuid.UUID, name string, fragments int) *entity.Topic {
	topic := &entity.Topic{Id: uuid.New(), BookId: book, Name: name, Level: 1, Sequence: len(l.topics) + 1}
	topic.Order = topic.Sequence
	l.topics = append(l.topics, topic)
	for i := 1; i <= fragments; i++ {
		l.fragments[topic.Id] = append(l.fragments[topic.Id], &entity.KnowledgeFragment{
			Id:              uuid.New(),
			TopicId:         topic.Id,
			Content:         name,
			AppearanceOrder: i,
		})
	}
	return topic
}

func (l *library) FindInScope(_ context.Context, topicId, licenseId uuid.UUID) (*entity.Topic, error) {
	for _, t := range l.topics {
		if t.Id == topicId && l.licenseOf[t.BookId] == licenseId {
			return t, nil
		}
	}
	return nil, nil
}

func (l *library) FindNextWithFragments(_ context.Context, bookId uuid.UUID, afterSequence int) (*entity.Topic, error) {
	var candidates []*entity.Topic
	for _, t := range l.topics {
		if t.BookId == bookId && t.Sequence > afterSequence && len(l.fragments[t.Id]) > 0 {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Sequence < candidates[j].Sequence })
	return candidates[0], nil
}

func (l *library) FindNextInTopic(_ context.Context, topicId uuid.UUID, afterOrder int) (*entity.KnowledgeFragment, error) {
	for _, f := range l.fragments[topicId] {
		if f.AppearanceOrder > afterOrder {
			return f, nil
		}
	}
	return nil, nil
}

func (l *library) FindById(_ context.Context, id uuid.UUID) (*entity.KnowledgeFragment, error) {
	for _, list := range l.fragments {
		for _, f := range list {
			if f.Id == id {
				return f, nil
			}
		}
	}
	return nil, nil
}

type fixedBooks struct {
	book uuid.UUID
	err  error
}

func (b fixedBooks) ResolveBook(_ context.Context, _, _ uuid.UUID, requested *uuid.UUID) (uuid.UUID, error) {
	if b.err != nil {
		return uuid.Nil, b.err
	}
	if requested != nil {
		return *requested, nil
	}
	return b.book, nil
}

// cursorTable mimics the unique (student, topic) index and the conditional
// update of the SQL repository.
type cursorTable struct {
	mu      sync.Mutex
	rows    map[[2]uuid.UUID]*entity.ProgressCursor
	clock   int
	updated map[uuid.UUID]int

	barrier  *sync.WaitGroup
	arrivals int32
}

func newCursorTable() *cursorTable {
	return &cursorTable{rows: map[[2]uuid.UUID]*entity.ProgressCursor{}, updated: map[uuid.UUID]int{}}
}

func (c *cursorTable) Find(_ context.Context, studentId, topicId uuid.UUID) (*entity.ProgressCursor, error) {
	if c.barrier != nil && atomic.AddInt32(&c.arrivals, 1) <= 2 {
		c.barrier.Done()
		c.barrier.Wait()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if row, ok := c.rows[[2]uuid.UUID{studentId, topicId}]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (c *cursorTable) CreateIfAbsent(_ context.Context, cursor *entity.ProgressCursor) (*entity.ProgressCursor, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := [2]uuid.UUID{cursor.StudentId, cursor.TopicId}
	if row, ok := c.rows[key]; ok {
		cp := *row
		return &cp, false, nil
	}
	row := *cursor
	row.Id = uuid.New()
	c.rows[key] = &row
	c.touch(row.Id)
	cp := row
	return &cp, true, nil
}

func (c *cursorTable) Advance(_ context.Context, cursorId, fragmentId uuid.UUID, order int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.rows {
		if row.Id == cursorId && row.LastOrder < order {
			row.LastFragmentId = fragmentId
			row.LastOrder = order
			c.touch(row.Id)
			return true, nil
		}
	}
	return false, nil
}

func (c *cursorTable) FindLatestForStudent(_ context.Context, studentId uuid.UUID) (*entity.ProgressCursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var latest *entity.ProgressCursor
	for _, row := range c.rows {
		if row.StudentId != studentId {
			continue
		}
		if latest == nil || c.updated[row.Id] > c.updated[latest.Id] {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (c *cursorTable) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

func (c *cursorTable) touch(id uuid.UUID) {
	c.clock++
	c.updated[id] = c.clock
}

type sessionMap struct {
	mu   sync.Mutex
	data map[string]*store.StudentSession
}

func newSessionMap() *sessionMap {
	return &sessionMap{data: map[string]*store.StudentSession{}}
}

func (s *sessionMap) Get(id string) (*store.StudentSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

func (s *sessionMap) Save(sess *store.StudentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.StudentID] = sess.Clone()
}
