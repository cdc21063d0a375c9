package mapper

import (
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
)

type LicenseMapper struct{}

func NewLicenseMapper() *LicenseMapper {
	return &LicenseMapper{}
}

func (m *LicenseMapper) ToEntity(l *model.License) *entity.License {
	if l == nil {
		return nil
	}
	return &entity.License{
		Id:          l.Id,
		Client:      l.Client,
		MaxStudents: l.MaxStudents,
		Active:      l.Active,
		StartsAt:    l.StartsAt,
		EndsAt:      l.EndsAt,
		CreatedAt:   l.CreatedAt,
	}
}

func (m *LicenseMapper) ToModel(l *entity.License) *model.License {
	if l == nil {
		return nil
	}
	return &model.License{
		Id:          l.Id,
		Client:      l.Client,
		MaxStudents: l.MaxStudents,
		Active:      l.Active,
		StartsAt:    l.StartsAt,
		EndsAt:      l.EndsAt,
		CreatedAt:   l.CreatedAt,
	}
}

type StudentMapper struct{}

func NewStudentMapper() *StudentMapper {
	return &StudentMapper{}
}

func (m *StudentMapper) ToEntity(s *model.Student) *entity.Student {
	if s == nil {
		return nil
	}
	return &entity.Student{
		Id:        s.Id,
		LicenseId: s.LicenseId,
		BookId:    s.BookId,
		Name:      s.Name,
		Email:     s.Email,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}

func (m *StudentMapper) ToModel(s *entity.Student) *model.Student {
	if s == nil {
		return nil
	}
	return &model.Student{
		Id:        s.Id,
		LicenseId: s.LicenseId,
		BookId:    s.BookId,
		Name:      s.Name,
		Email:     s.Email,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}
