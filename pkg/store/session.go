package store

import (
	"time"

	"github.com/google/uuid"
)

// StudentSession is the short-lived tutoring state of one student. It is a
// cache: the progress cursors in the database remain the source of truth.
type StudentSession struct {
	StudentID      string     `json:"student_id"`
	TopicID        *uuid.UUID `json:"topic_id"`
	LastFragmentID *uuid.UUID `json:"last_fragment_id"`
	ChatSessionID  *uuid.UUID `json:"chat_session_id"`
	LastIntent     string     `json:"last_intent"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s *StudentSession) Clone() *StudentSession {
	c := *s
	c.TopicID = cloneID(s.TopicID)
	c.LastFragmentID = cloneID(s.LastFragmentID)
	c.ChatSessionID = cloneID(s.ChatSessionID)
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
