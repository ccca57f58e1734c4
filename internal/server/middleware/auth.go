package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"cfsub/internal/models"
	"cfsub/internal/services"
)

// AdminRequired checks an admin JWT from Authorization: Bearer or Cookie("admin_token").
// An empty secret leaves the route open.
func AdminRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		token := c.Cookies("admin_token")
		if authz := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(authz, "Bearer ") {
			token = strings.TrimPrefix(authz, "Bearer ")
		}
		if token == "" {
			return unauthorized(c, "missing admin token")
		}
		claims, err := services.ParseAdminToken(secret, token)
		if err != nil {
			return unauthorized(c, "invalid admin token")
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{Error: models.AppError{
		Code:    "UNAUTHORIZED",
		Message: msg,
		Stage:   "auth",
	}})
}
