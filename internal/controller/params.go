package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func uuidParam(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// optionalUUIDQuery returns nil when the query parameter is absent.
func optionalUUIDQuery(ctx *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}
