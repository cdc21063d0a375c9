package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/intent"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/rag/progress"
	"ai-tutor-be/pkg/rag/prompt"
	"ai-tutor-be/pkg/rag/retrieval"
	"ai-tutor-be/pkg/store"

	"github.com/google/uuid"
)

const (
	sessionTitleRunes   = 30
	bookCompleteMessage = "Has terminado todo el contenido del libro."
)

// StreamFunc receives one named server-sent event.
type StreamFunc func(event string, data interface{}) error

type IntentClassifier interface {
	Classify(text string) intent.Intent
}

type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Result, error)
}

type ProgressTracker interface {
	Advance(ctx context.Context, req progress.Request) (*progress.Step, error)
	Location(ctx context.Context, req progress.Request) (*progress.Position, error)
}

type ITutorService interface {
	Ask(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error)
	AskStream(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AskRequest, emit StreamFunc) error
	Advance(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AdvanceRequest) (*dto.AdvanceResponse, error)
	Location(ctx context.Context, studentId, licenseId uuid.UUID, bookId *uuid.UUID) (*dto.LocationResponse, error)
}

type tutorService struct {
	uowFactory   unitofwork.RepositoryFactory
	intents      IntentClassifier
	retriever    Retriever
	tracker      ProgressTracker
	llm          llm.LLMProvider
	prompts      *prompt.Builder
	profile      *config.TutorProfile
	sessions     progress.Sessions
	events       IEventPublisher
	historyLimit int
	logger       logger.ILogger
}

func NewTutorService(
	uowFactory unitofwork.RepositoryFactory,
	intents IntentClassifier,
	retriever Retriever,
	tracker ProgressTracker,
	provider llm.LLMProvider,
	profile *config.TutorProfile,
	sessions progress.Sessions,
	eventPublisher IEventPublisher,
	historyLimit int,
	log logger.ILogger,
) ITutorService {
	return &tutorService{
		uowFactory:   uowFactory,
		intents:      intents,
		retriever:    retriever,
		tracker:      tracker,
		llm:          provider,
		prompts:      prompt.NewBuilder(profile.Persona),
		profile:      profile,
		sessions:     sessions,
		events:       eventPublisher,
		historyLimit: historyLimit,
		logger:       log,
	}
}

// turn is one question being answered inside a chat session.
type turn struct {
	studentId uuid.UUID
	licenseId uuid.UUID
	req       *dto.AskRequest
	session   *entity.ChatSession
	history   []*entity.ChatMessage
	intent    intent.Intent
	uow       unitofwork.UnitOfWork
}

func (s *tutorService) Ask(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error) {
	t, err := s.begin(ctx, studentId, licenseId, req)
	if err != nil {
		return nil, err
	}

	res, messages, err := s.route(ctx, t)
	if err != nil {
		return nil, err
	}
	if messages != nil {
		answer, err := s.llm.Chat(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		res.Answer = answer
	}

	if err := s.finish(ctx, t, res); err != nil {
		return nil, err
	}
	return res, nil
}

// AskStream emits a "session" event first, then "delta" events carrying the
// answer, then a final "done" event with the full response.
func (s *tutorService) AskStream(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AskRequest, emit StreamFunc) error {
	t, err := s.begin(ctx, studentId, licenseId, req)
	if err != nil {
		return err
	}
	if err := emit("session", map[string]interface{}{"session_id": t.session.Id}); err != nil {
		return err
	}

	res, messages, err := s.route(ctx, t)
	if err != nil {
		return err
	}
	if messages != nil {
		answer, err := s.llm.Stream(ctx, messages, func(delta string) error {
			return emit("delta", map[string]string{"content": delta})
		})
		if err != nil {
			return fmt.Errorf("stream answer: %w", err)
		}
		res.Answer = answer
	} else if err := emit("delta", map[string]string{"content": res.Answer}); err != nil {
		return err
	}

	if err := s.finish(ctx, t, res); err != nil {
		return err
	}
	return emit("done", res)
}

// begin opens or resumes the chat session, loads its memory and records the
// question.
func (s *tutorService) begin(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AskRequest) (*turn, error) {
	if licenseId == uuid.Nil {
		return nil, retrieval.ErrMissingTenant
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := s.openSession(ctx, uow, studentId, req)
	if err != nil {
		return nil, err
	}

	history, err := uow.ChatMessageRepository().FindLatest(ctx, session.Id, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	t := &turn{
		studentId: studentId,
		licenseId: licenseId,
		req:       req,
		session:   session,
		history:   history,
		intent:    s.intents.Classify(req.Question),
		uow:       uow,
	}

	if err := uow.ChatMessageRepository().Create(ctx, &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          llm.RoleUser,
		Content:       req.Question,
		Intent:        string(t.intent),
		CreatedAt:     time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("save question: %w", err)
	}
	return t, nil
}

func (s *tutorService) openSession(ctx context.Context, uow unitofwork.UnitOfWork, studentId uuid.UUID, req *dto.AskRequest) (*entity.ChatSession, error) {
	if req.SessionId != nil {
		session, err := uow.ChatSessionRepository().FindOne(ctx,
			specification.ByID{ID: *req.SessionId},
			specification.ByStudentID{StudentID: studentId},
		)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	session := &entity.ChatSession{
		Id:        uuid.New(),
		StudentId: studentId,
		TopicId:   req.TopicId,
		Title:     SessionTitle(req.Question),
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	return session, nil
}

// route answers advance and location requests directly. Questions are
// answered from retrieval; the returned messages are non-nil when the model
// still has to write the answer.
func (s *tutorService) route(ctx context.Context, t *turn) (*dto.AskResponse, []llm.Message, error) {
	res := &dto.AskResponse{
		SessionId: t.session.Id,
		Intent:    string(t.intent),
		Sources:   []dto.SourceResponse{},
	}

	switch t.intent {
	case intent.Advance:
		lesson, err := s.advance(ctx, t.studentId, t.licenseId, &dto.AdvanceRequest{TopicId: t.req.TopicId, BookId: t.req.BookId})
		if err != nil {
			return nil, nil, err
		}
		res.Lesson = lesson
		res.Answer = lessonText(lesson)
		res.Grounded = lesson.Fragment != nil
		return res, nil, nil

	case intent.Location:
		loc, err := s.Location(ctx, t.studentId, t.licenseId, t.req.BookId)
		if err != nil {
			return nil, nil, err
		}
		res.Location = loc
		res.Answer = locationText(loc)
		res.Grounded = true
		return res, nil, nil
	}

	result, err := s.retriever.Retrieve(ctx, retrieval.Query{
		Text:           t.req.Question,
		Scope:          retrieval.Scope{LicenseId: t.licenseId, BookId: t.req.BookId},
		CurrentTopicId: s.currentTopic(t),
	})
	if err != nil {
		return nil, nil, err
	}
	res.Status = string(result.Status)
	res.Grounded = result.Grounded()
	for _, f := range result.Fragments {
		res.Sources = append(res.Sources, dto.SourceResponse{
			FragmentId:   f.Fragment.Id,
			TopicName:    f.TopicName,
			BookPosition: f.Fragment.BookPosition,
			Score:        f.Score,
		})
	}

	if result.Status == retrieval.StatusNoKnowledge {
		res.Answer = s.profile.NoContextMessage
		return res, nil, nil
	}
	return res, s.prompts.Answer(prompt.History(t.history), t.req.Question, result.Fragments), nil
}

func (s *tutorService) currentTopic(t *turn) *uuid.UUID {
	if t.req.TopicId != nil {
		return t.req.TopicId
	}
	if sess, ok := s.sessions.Get(t.studentId.String()); ok && sess.TopicID != nil {
		return sess.TopicID
	}
	return t.session.TopicId
}

// finish stores the answer and remembers the session for the student.
func (s *tutorService) finish(ctx context.Context, t *turn, res *dto.AskResponse) error {
	sources := make([]uuid.UUID, 0, len(res.Sources))
	for _, src := range res.Sources {
		sources = append(sources, src.FragmentId)
	}
	if err := t.uow.ChatMessageRepository().Create(ctx, &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: t.session.Id,
		Role:          llm.RoleAssistant,
		Content:       res.Answer,
		Intent:        string(t.intent),
		Sources:       sources,
		CreatedAt:     time.Now(),
	}); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	sess, ok := s.sessions.Get(t.studentId.String())
	if !ok {
		sess = &store.StudentSession{StudentID: t.studentId.String()}
	}
	sessionId := t.session.Id
	sess.ChatSessionID = &sessionId
	sess.LastIntent = string(t.intent)
	s.sessions.Save(sess)

	s.logger.Info("TutorService", "Question answered", map[string]interface{}{
		"student_id": t.studentId,
		"session_id": t.session.Id,
		"intent":     t.intent,
		"status":     res.Status,
		"sources":    len(sources),
	})
	return nil
}

func (s *tutorService) Advance(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AdvanceRequest) (*dto.AdvanceResponse, error) {
	return s.advance(ctx, studentId, licenseId, req)
}

func (s *tutorService) advance(ctx context.Context, studentId, licenseId uuid.UUID, req *dto.AdvanceRequest) (*dto.AdvanceResponse, error) {
	step, err := s.tracker.Advance(ctx, progress.Request{
		StudentId: studentId,
		LicenseId: licenseId,
		TopicId:   req.TopicId,
		BookId:    req.BookId,
	})
	if err != nil {
		return nil, err
	}

	res := &dto.AdvanceResponse{
		Topic:        toTopicSummary(step.Topic),
		Fragment:     toFragmentResponse(step.Fragment),
		State:        string(step.State),
		CrossedTopic: step.CrossedTopic,
		BookComplete: step.BookComplete,
	}

	if step.BookComplete {
		if err := s.events.Publish(context.WithoutCancel(ctx), events.NewBookCompleted(studentId, licenseId, step.Topic.BookId)); err != nil {
			s.logger.Warn("TutorService", "Failed to publish book completion", map[string]interface{}{"student_id": studentId, "error": err.Error()})
		}
		return res, nil
	}

	if req.Explain && step.Fragment != nil {
		// the cursor has already moved, so a failed explanation still returns the fragment
		explanation, err := s.llm.Chat(ctx, s.prompts.Explain(step.Topic, step.Fragment, s.profile.ExplainPrompt))
		if err != nil {
			s.logger.Warn("TutorService", "Explanation failed", map[string]interface{}{"fragment_id": step.Fragment.Id, "error": err.Error()})
		} else {
			res.Explanation = explanation
		}
	}
	return res, nil
}

func (s *tutorService) Location(ctx context.Context, studentId, licenseId uuid.UUID, bookId *uuid.UUID) (*dto.LocationResponse, error) {
	pos, err := s.tracker.Location(ctx, progress.Request{
		StudentId: studentId,
		LicenseId: licenseId,
		BookId:    bookId,
	})
	if err != nil {
		return nil, err
	}
	return &dto.LocationResponse{
		Topic:    toTopicSummary(pos.Topic),
		Fragment: toFragmentResponse(pos.Fragment),
		Started:  pos.Started,
	}, nil
}

// SessionTitle is the first characters of the opening question.
func SessionTitle(question string) string {
	q := strings.Join(strings.Fields(question), " ")
	runes := []rune(q)
	if len(runes) <= sessionTitleRunes {
		return q
	}
	return string(runes[:sessionTitleRunes])
}

func lessonText(l *dto.AdvanceResponse) string {
	if l.BookComplete || l.Fragment == nil {
		return bookCompleteMessage
	}
	if l.Explanation != "" {
		return l.Explanation
	}
	return l.Fragment.Content
}

func locationText(l *dto.LocationResponse) string {
	if !l.Started || l.Fragment == nil {
		return fmt.Sprintf("Aún no has empezado. La primera lección es «%s».", l.Topic.Name)
	}
	return fmt.Sprintf("Estás en «%s», fragmento %d.", l.Topic.Name, l.Fragment.AppearanceOrder)
}

func toTopicSummary(t *entity.Topic) dto.TopicSummary {
	if t == nil {
		return dto.TopicSummary{}
	}
	return dto.TopicSummary{
		Id:       t.Id,
		BookId:   t.BookId,
		Name:     t.Name,
		Level:    t.Level,
		Sequence: t.Sequence,
	}
}

func toFragmentResponse(f *entity.KnowledgeFragment) *dto.FragmentResponse {
	if f == nil {
		return nil
	}
	return &dto.FragmentResponse{
		Id:              f.Id,
		Content:         f.Content,
		ContentType:     string(f.ContentType),
		AppearanceOrder: f.AppearanceOrder,
		BookPosition:    f.BookPosition,
		Page:            f.Page,
	}
}
