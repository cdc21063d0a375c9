package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"
)

type LicenseRepository interface {
	Create(ctx context.Context, license *entity.License) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.License, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *entity.Student) error
	Update(ctx context.Context, student *entity.Student) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Student, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
