package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByLicenseID struct {
	LicenseID uuid.UUID
}

func (s ByLicenseID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("license_id = ?", s.LicenseID)
}

type ByBookID struct {
	BookID uuid.UUID
}

func (s ByBookID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("book_id = ?", s.BookID)
}

type ByTopicID struct {
	TopicID uuid.UUID
}

func (s ByTopicID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("topic_id = ?", s.TopicID)
}

type ByStudentID struct {
	StudentID uuid.UUID
}

func (s ByStudentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("student_id = ?", s.StudentID)
}

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// ActiveOnly keeps rows whose active flag is set.
type ActiveOnly struct{}

func (s ActiveOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("active = ?", true)
}

// InReadingOrder sorts topics by their position in the book outline.
type InReadingOrder struct{}

func (s InReadingOrder) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC")
}

// ByEmail filters by email address (case insensitive)
type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("LOWER(email) = LOWER(?)", s.Email)
}
