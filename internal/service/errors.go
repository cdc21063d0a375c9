package service

import (
	"errors"

	"ai-tutor-be/pkg/pdf"
	"ai-tutor-be/pkg/rag/progress"
	"ai-tutor-be/pkg/rag/retrieval"
	"ai-tutor-be/pkg/resilience"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrJobNotFound     = errors.New("ingestion job not found")
	ErrSessionNotFound = errors.New("chat session not found")
	ErrStudentInactive = errors.New("student is not active")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
)

// HTTPStatus maps the domain errors of the services to HTTP statuses.
func HTTPStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrTopicNotFound),
		errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, progress.ErrTopicNotFound),
		errors.Is(err, progress.ErrNoBookAssigned),
		errors.Is(err, progress.ErrNoContent):
		return fiber.StatusNotFound, true
	case errors.Is(err, pdf.ErrNotPDF), errors.Is(err, ErrEmptyUpload):
		return fiber.StatusBadRequest, true
	case errors.Is(err, retrieval.ErrMissingTenant), errors.Is(err, progress.ErrMissingTenant):
		return fiber.StatusUnauthorized, true
	case errors.Is(err, ErrStudentInactive):
		return fiber.StatusForbidden, true
	case errors.Is(err, progress.ErrConcurrentAdvance):
		return fiber.StatusConflict, true
	case errors.Is(err, resilience.ErrRateLimited):
		return fiber.StatusServiceUnavailable, true
	}
	return 0, false
}
