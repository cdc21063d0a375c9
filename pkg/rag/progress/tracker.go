// Package progress walks a student through a book one fragment at a time.
//
// Each (student, topic) pair moves through NoCursor, InProgress and
// Exhausted. An exhausted topic hands over to the next topic of the book
// that has content; when none is left the book is complete.
package progress

import (
	"context"
	"errors"
	"fmt"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/store"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type State string

const (
	StateNoCursor   State = "no_cursor"
	StateInProgress State = "in_progress"
	StateExhausted  State = "exhausted"
)

// maxAdvanceAttempts bounds the re-reads after losing a concurrent update.
const maxAdvanceAttempts = 3

var (
	ErrMissingTenant     = errors.New("progress: licence scope is required")
	ErrTopicNotFound     = errors.New("progress: topic not found in licence")
	ErrNoBookAssigned    = errors.New("progress: student has no book assigned")
	ErrNoContent         = errors.New("progress: book has no content yet")
	ErrConcurrentAdvance = errors.New("progress: cursor kept moving under concurrent advances")
)

type Request struct {
	StudentId uuid.UUID
	LicenseId uuid.UUID
	TopicId   *uuid.UUID
	BookId    *uuid.UUID
}

// Step is the outcome of one advance. Fragment is nil only when BookComplete.
type Step struct {
	Fragment     *entity.KnowledgeFragment
	Topic        *entity.Topic
	State        State
	CrossedTopic bool
	BookComplete bool
}

// Position is the student's place for location questions.
type Position struct {
	Topic    *entity.Topic
	Fragment *entity.KnowledgeFragment
	Started  bool
}

type Topics interface {
	FindInScope(ctx context.Context, topicId, licenseId uuid.UUID) (*entity.Topic, error)
	FindNextWithFragments(ctx context.Context, bookId uuid.UUID, afterSequence int) (*entity.Topic, error)
}

type Fragments interface {
	FindNextInTopic(ctx context.Context, topicId uuid.UUID, afterOrder int) (*entity.KnowledgeFragment, error)
	FindById(ctx context.Context, id uuid.UUID) (*entity.KnowledgeFragment, error)
}

// Books resolves which book a student studies. requested may be nil; a
// non-nil value must be checked against the licence.
type Books interface {
	ResolveBook(ctx context.Context, studentId, licenseId uuid.UUID, requested *uuid.UUID) (uuid.UUID, error)
}

type Sessions interface {
	Get(studentID string) (*store.StudentSession, bool)
	Save(session *store.StudentSession)
}

type Tracker struct {
	topics    Topics
	fragments Fragments
	cursors   contract.ProgressCursorRepository
	books     Books
	sessions  Sessions
	group     singleflight.Group
	logger    logger.ILogger
}

func NewTracker(
	topics Topics,
	fragments Fragments,
	cursors contract.ProgressCursorRepository,
	books Books,
	sessions Sessions,
	log logger.ILogger,
) *Tracker {
	return &Tracker{
		topics:    topics,
		fragments: fragments,
		cursors:   cursors,
		books:     books,
		sessions:  sessions,
		logger:    log,
	}
}

// Advance returns the next unseen fragment. Concurrent calls for the same
// student and topic share one result.
func (t *Tracker) Advance(ctx context.Context, req Request) (*Step, error) {
	if req.LicenseId == uuid.Nil {
		return nil, ErrMissingTenant
	}

	key := req.StudentId.String()
	if req.TopicId != nil {
		key += ":" + req.TopicId.String()
	}
	v, err, shared := t.group.Do(key, func() (interface{}, error) {
		return t.advance(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		t.logger.Debug("ProgressTracker", "Advance collapsed with a concurrent call", map[string]interface{}{"student_id": req.StudentId})
	}
	return v.(*Step), nil
}

func (t *Tracker) advance(ctx context.Context, req Request) (*Step, error) {
	topic, err := t.resolveTopic(ctx, req)
	if err != nil {
		return nil, err
	}

	step, err := t.walk(ctx, req.StudentId, topic)
	if err != nil {
		return nil, err
	}

	t.remember(req.StudentId, step)
	t.logger.Info("ProgressTracker", "Advanced", map[string]interface{}{
		"student_id":    req.StudentId,
		"topic_id":      step.Topic.Id,
		"state":         step.State,
		"crossed_topic": step.CrossedTopic,
		"book_complete": step.BookComplete,
	})
	return step, nil
}

// walk serves the next fragment of topic, crossing into following topics
// while the current one is exhausted. Sequences strictly increase, so the
// loop ends.
func (t *Tracker) walk(ctx context.Context, studentId uuid.UUID, topic *entity.Topic) (*Step, error) {
	crossed := false
	for {
		fragment, state, err := t.nextInTopic(ctx, studentId, topic)
		if err != nil {
			return nil, err
		}
		if fragment != nil {
			return &Step{Fragment: fragment, Topic: topic, State: state, CrossedTopic: crossed}, nil
		}

		next, err := t.topics.FindNextWithFragments(ctx, topic.BookId, topic.Sequence)
		if err != nil {
			return nil, fmt.Errorf("find next topic: %w", err)
		}
		if next == nil {
			return &Step{Topic: topic, State: StateExhausted, BookComplete: true, CrossedTopic: crossed}, nil
		}
		topic = next
		crossed = true
	}
}

// nextInTopic returns the fragment to serve in topic and the state the pair
// was in, or a nil fragment when the topic is exhausted.
func (t *Tracker) nextInTopic(ctx context.Context, studentId uuid.UUID, topic *entity.Topic) (*entity.KnowledgeFragment, State, error) {
	cursor, err := t.cursors.Find(ctx, studentId, topic.Id)
	if err != nil {
		return nil, "", fmt.Errorf("load cursor: %w", err)
	}

	if cursor == nil {
		first, err := t.fragments.FindNextInTopic(ctx, topic.Id, 0)
		if err != nil {
			return nil, "", fmt.Errorf("load first fragment: %w", err)
		}
		if first == nil {
			return nil, StateExhausted, nil
		}
		// a concurrent creator wins silently; both callers serve the first fragment
		if _, _, err := t.cursors.CreateIfAbsent(ctx, &entity.ProgressCursor{
			StudentId:      studentId,
			TopicId:        topic.Id,
			LastFragmentId: first.Id,
			LastOrder:      first.AppearanceOrder,
		}); err != nil {
			return nil, "", fmt.Errorf("create cursor: %w", err)
		}
		return first, StateNoCursor, nil
	}

	for attempt := 0; attempt < maxAdvanceAttempts; attempt++ {
		next, err := t.fragments.FindNextInTopic(ctx, topic.Id, cursor.LastOrder)
		if err != nil {
			return nil, "", fmt.Errorf("load next fragment: %w", err)
		}
		if next == nil {
			return nil, StateExhausted, nil
		}

		moved, err := t.cursors.Advance(ctx, cursor.Id, next.Id, next.AppearanceOrder)
		if err != nil {
			return nil, "", fmt.Errorf("advance cursor: %w", err)
		}
		if moved {
			return next, StateInProgress, nil
		}

		cursor, err = t.cursors.Find(ctx, studentId, topic.Id)
		if err != nil {
			return nil, "", fmt.Errorf("reload cursor: %w", err)
		}
		if cursor == nil {
			return nil, "", fmt.Errorf("reload cursor: cursor for topic %s disappeared", topic.Id)
		}
	}
	return nil, "", ErrConcurrentAdvance
}

// resolveTopic picks the topic to advance in: the explicit one, then the
// session's, then the most recently used cursor's, then the first topic of
// the student's book.
func (t *Tracker) resolveTopic(ctx context.Context, req Request) (*entity.Topic, error) {
	if req.TopicId != nil {
		topic, err := t.topics.FindInScope(ctx, *req.TopicId, req.LicenseId)
		if err != nil {
			return nil, fmt.Errorf("load topic: %w", err)
		}
		if topic == nil {
			return nil, ErrTopicNotFound
		}
		return topic, nil
	}

	current, err := t.currentTopic(ctx, req.StudentId, req.LicenseId)
	if err != nil {
		return nil, err
	}
	if current != nil && (req.BookId == nil || current.BookId == *req.BookId) {
		return current, nil
	}

	bookId, err := t.books.ResolveBook(ctx, req.StudentId, req.LicenseId, req.BookId)
	if err != nil {
		return nil, err
	}
	topic, err := t.topics.FindNextWithFragments(ctx, bookId, 0)
	if err != nil {
		return nil, fmt.Errorf("load first topic: %w", err)
	}
	if topic == nil {
		return nil, ErrNoContent
	}
	return topic, nil
}

// currentTopic returns nil without error when the student has no usable
// recorded topic.
func (t *Tracker) currentTopic(ctx context.Context, studentId, licenseId uuid.UUID) (*entity.Topic, error) {
	var candidate *uuid.UUID
	if sess, ok := t.sessions.Get(studentId.String()); ok && sess.TopicID != nil {
		candidate = sess.TopicID
	} else {
		latest, err := t.cursors.FindLatestForStudent(ctx, studentId)
		if err != nil {
			return nil, fmt.Errorf("load latest cursor: %w", err)
		}
		if latest != nil {
			candidate = &latest.TopicId
		}
	}
	if candidate == nil {
		return nil, nil
	}

	topic, err := t.topics.FindInScope(ctx, *candidate, licenseId)
	if err != nil {
		return nil, fmt.Errorf("load current topic: %w", err)
	}
	return topic, nil
}

func (t *Tracker) remember(studentId uuid.UUID, step *Step) {
	sess, ok := t.sessions.Get(studentId.String())
	if !ok {
		sess = &store.StudentSession{StudentID: studentId.String()}
	}
	topicID := step.Topic.Id
	sess.TopicID = &topicID
	if step.Fragment != nil {
		fragmentID := step.Fragment.Id
		sess.LastFragmentID = &fragmentID
	}
	t.sessions.Save(sess)
}

// Location reports where the student is without moving the cursor.
func (t *Tracker) Location(ctx context.Context, req Request) (*Position, error) {
	if req.LicenseId == uuid.Nil {
		return nil, ErrMissingTenant
	}

	topic, err := t.resolveTopic(ctx, req)
	if err != nil {
		return nil, err
	}

	cursor, err := t.cursors.Find(ctx, req.StudentId, topic.Id)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	if cursor == nil {
		return &Position{Topic: topic}, nil
	}

	fragment, err := t.fragments.FindById(ctx, cursor.LastFragmentId)
	if err != nil {
		return nil, fmt.Errorf("load fragment: %w", err)
	}
	return &Position{Topic: topic, Fragment: fragment, Started: true}, nil
}
