package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// StatusMapper maps a domain error to an HTTP status. ok=false means the
// mapper does not know the error.
type StatusMapper func(err error) (status int, ok bool)

// ErrorHandlerMiddleware turns errors returned by handlers into
// ErrorResponse bodies. Unknown errors become 500 with a generic message.
func ErrorHandlerMiddleware(mappers ...StatusMapper) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
		}
		for _, m := range mappers {
			if status, ok := m(err); ok {
				return ctx.Status(status).JSON(ErrorResponse(status, err.Error()))
			}
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "internal server error"))
	}
}
