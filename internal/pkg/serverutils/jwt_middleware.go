// FILE: internal/pkg/serverutils/jwt_middleware.go
package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	localStudentID = "student_id"
	localLicenseID = "license_id"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is who is calling: the student and the licence that scopes every
// read they make.
type Identity struct {
	StudentId uuid.UUID
	LicenseId uuid.UUID
}

// ParseToken validates an HS256 token and reads the student_id and
// license_id claims.
func ParseToken(secret, tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	studentId, err := uuidClaim(claims, "student_id")
	if err != nil {
		return Identity{}, err
	}
	licenseId, err := uuidClaim(claims, "license_id")
	if err != nil {
		return Identity{}, err
	}
	return Identity{StudentId: studentId, LicenseId: licenseId}, nil
}

func uuidClaim(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	raw, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// BearerToken reads the Authorization header, falling back to the token
// query parameter that browsers use for websocket handshakes.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		identity, err := ParseToken(secret, tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals(localStudentID, identity.StudentId)
		ctx.Locals(localLicenseID, identity.LicenseId)
		return ctx.Next()
	}
}

// IdentityFrom returns the identity stored by the JWT middleware.
func IdentityFrom(ctx *fiber.Ctx) (Identity, error) {
	studentId, ok := ctx.Locals(localStudentID).(uuid.UUID)
	if !ok {
		return Identity{}, fiber.ErrUnauthorized
	}
	licenseId, ok := ctx.Locals(localLicenseID).(uuid.UUID)
	if !ok {
		return Identity{}, fiber.ErrUnauthorized
	}
	return Identity{StudentId: studentId, LicenseId: licenseId}, nil
}
