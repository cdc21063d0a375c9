package controller

import (
	"bufio"
	"context"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type ITutorController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Ask(ctx *fiber.Ctx) error
	AskStream(ctx *fiber.Ctx) error
	Advance(ctx *fiber.Ctx) error
	Location(ctx *fiber.Ctx) error
}

type tutorController struct {
	service service.ITutorService
	logger  logger.ILogger
}

func NewTutorController(service service.ITutorService, log logger.ILogger) ITutorController {
	return &tutorController{service: service, logger: log}
}

func (c *tutorController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/tutor/v1")
	h.Use(auth)
	h.Post("ask", c.Ask)
	h.Post("ask/stream", c.AskStream)
	h.Post("advance", c.Advance)
	h.Get("location", c.Location)
}

func (c *tutorController) Ask(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.UserContext(), identity.StudentId, identity.LicenseId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
}

// AskStream answers as server-sent events. Errors raised once the stream has
// started are sent as an "error" event because the status line is gone.
func (c *tutorController) AskStream(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	reqCtx := context.WithoutCancel(ctx.UserContext())
	ctx.Set("Content-Type", "text/event-stream; charset=utf-8")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		err := c.service.AskStream(reqCtx, identity.StudentId, identity.LicenseId, &req, func(event string, data interface{}) error {
			return serverutils.WriteSSE(w, event, data)
		})
		if err == nil {
			return
		}

		c.logger.Error("TutorController", "Streaming answer failed", map[string]interface{}{
			"student_id": identity.StudentId,
			"error":      err.Error(),
		})
		code := fiber.StatusInternalServerError
		message := "internal server error"
		if status, ok := service.HTTPStatus(err); ok {
			code, message = status, err.Error()
		}
		_ = serverutils.WriteSSE(w, "error", serverutils.ErrorResponse(code, message))
	}))
	return nil
}

func (c *tutorController) Advance(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	var req dto.AdvanceRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	res, err := c.service.Advance(ctx.UserContext(), identity.StudentId, identity.LicenseId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success advance lesson", res))
}

func (c *tutorController) Location(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	bookId, err := optionalUUIDQuery(ctx, "book_id")
	if err != nil {
		return err
	}

	res, err := c.service.Location(ctx.UserContext(), identity.StudentId, identity.LicenseId, bookId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get location", res))
}
