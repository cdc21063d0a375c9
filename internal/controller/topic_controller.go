package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITopicController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	UpdateContent(ctx *fiber.Ctx) error
}

type topicController struct {
	bookService service.IBookService
}

func NewTopicController(bookService service.IBookService) ITopicController {
	return &topicController{bookService: bookService}
}

func (c *topicController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/topic/v1")
	h.Use(auth)
	h.Put(":id/content", c.UpdateContent)
}

func (c *topicController) UpdateContent(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateTopicContentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.bookService.UpdateTopicContent(ctx.UserContext(), identity.LicenseId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update topic content", res))
}
