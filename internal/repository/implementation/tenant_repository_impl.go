package implementation

import (
	"context"
	"errors"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"

	"gorm.io/gorm"
)

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

type LicenseRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LicenseMapper
}

func NewLicenseRepository(db *gorm.DB) contract.LicenseRepository {
	return &LicenseRepositoryImpl{
		db:     db,
		mapper: mapper.NewLicenseMapper(),
	}
}

func (r *LicenseRepositoryImpl) Create(ctx context.Context, license *entity.License) error {
	m := r.mapper.ToModel(license)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*license = *r.mapper.ToEntity(m)
	return nil
}

func (r *LicenseRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.License, error) {
	var m model.License
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

type StudentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.StudentMapper
}

func NewStudentRepository(db *gorm.DB) contract.StudentRepository {
	return &StudentRepositoryImpl{
		db:     db,
		mapper: mapper.NewStudentMapper(),
	}
}

func (r *StudentRepositoryImpl) Create(ctx context.Context, student *entity.Student) error {
	m := r.mapper.ToModel(student)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*student = *r.mapper.ToEntity(m)
	return nil
}

func (r *StudentRepositoryImpl) Update(ctx context.Context, student *entity.Student) error {
	m := r.mapper.ToModel(student)
	if err := r.db.WithContext(ctx).Omit("License").Save(m).Error; err != nil {
		return err
	}
	*student = *r.mapper.ToEntity(m)
	return nil
}

func (r *StudentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Student, error) {
	var m model.Student
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *StudentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Student{}), specs...)
	err := query.Count(&count).Error
	return count, err
}
