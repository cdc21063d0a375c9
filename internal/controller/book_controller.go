package controller

import (
	"io"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IBookController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Upload(ctx *fiber.Ctx) error
	Progress(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Topics(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type bookController struct {
	bookService   service.IBookService
	ingestService service.IIngestService
}

func NewBookController(bookService service.IBookService, ingestService service.IIngestService) IBookController {
	return &bookController{
		bookService:   bookService,
		ingestService: ingestService,
	}
}

func (c *bookController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/book/v1")
	h.Use(auth)
	h.Get("", c.GetAll)
	h.Post("upload", c.Upload)
	h.Get("ingest/:jobId", c.Progress)
	h.Get(":id/topics", c.Topics)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
}

func (c *bookController) Upload(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.ingestService.Upload(ctx.UserContext(), identity.LicenseId, fileHeader.Filename, data)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Book upload queued", res))
}

func (c *bookController) Progress(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	res, err := c.ingestService.Progress(ctx.UserContext(), identity.LicenseId, ctx.Params("jobId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get ingestion progress", res))
}

func (c *bookController) GetAll(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	res, err := c.bookService.List(ctx.UserContext(), identity.LicenseId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all books", res))
}

func (c *bookController) Topics(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.bookService.Topics(ctx.UserContext(), identity.LicenseId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get book topics", res))
}

func (c *bookController) Update(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateBookRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.bookService.Update(ctx.UserContext(), identity.LicenseId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update book", res))
}

func (c *bookController) Delete(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	id, err := uuidParam(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.bookService.Delete(ctx.UserContext(), identity.LicenseId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete book", nil))
}
