package middleware

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	config "github.com/mwenda27/chat_link/configs"
	"github.com/mwenda27/chat_link/services"
)

func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.Config("JWT_SECRET")),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// AdminRequired gates on the user_roles table, not on a JWT claim, so a
// revoked admin loses access on their next request. Non-admins get a plain
// 404: the admin surface should not be discoverable.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}
		raw, _ := claims["user_id"].(string)
		userID, err := uuid.Parse(raw)
		if err != nil || !services.IsAdmin(userID) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.Next()
	}
}
