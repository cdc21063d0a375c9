package dto

import (
	"github.com/google/uuid"
)

type AskRequest struct {
	Question  string     `json:"question" validate:"required,max=4000"`
	SessionId *uuid.UUID `json:"session_id"`
	BookId    *uuid.UUID `json:"book_id"`
	TopicId   *uuid.UUID `json:"topic_id"`
}

type SourceResponse struct {
	FragmentId   uuid.UUID `json:"fragment_id"`
	TopicName    string    `json:"topic_name"`
	BookPosition int       `json:"book_position"`
	Score        float64   `json:"score"`
}

type AskResponse struct {
	SessionId uuid.UUID        `json:"session_id"`
	Intent    string           `json:"intent"`
	Answer    string           `json:"answer"`
	Status    string           `json:"status"`
	Grounded  bool             `json:"grounded"`
	Sources   []SourceResponse `json:"sources"`
	// Set when the question was routed to advance or location
	Lesson   *AdvanceResponse  `json:"lesson,omitempty"`
	Location *LocationResponse `json:"location,omitempty"`
}

type AdvanceRequest struct {
	TopicId *uuid.UUID `json:"topic_id"`
	BookId  *uuid.UUID `json:"book_id"`
	Explain bool       `json:"explain"`
}

type TopicSummary struct {
	Id       uuid.UUID `json:"id"`
	BookId   uuid.UUID `json:"book_id"`
	Name     string    `json:"name"`
	Level    int       `json:"level"`
	Sequence int       `json:"sequence"`
}

type FragmentResponse struct {
	Id              uuid.UUID `json:"id"`
	Content         string    `json:"content"`
	ContentType     string    `json:"content_type"`
	AppearanceOrder int       `json:"appearance_order"`
	BookPosition    int       `json:"book_position"`
	Page            int       `json:"page"`
}

type AdvanceResponse struct {
	Topic        TopicSummary      `json:"topic"`
	Fragment     *FragmentResponse `json:"fragment,omitempty"`
	State        string            `json:"state"`
	CrossedTopic bool              `json:"crossed_topic"`
	BookComplete bool              `json:"book_complete"`
	Explanation  string            `json:"explanation,omitempty"`
}

type LocationResponse struct {
	Topic    TopicSummary      `json:"topic"`
	Fragment *FragmentResponse `json:"fragment,omitempty"`
	Started  bool              `json:"started"`
}
