package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/auth"
)

const (
	CookieName  = "JWT"
	userIDLocal = "userID"
)

// TokenParser turns a session token into a user id.
type TokenParser interface {
	Parse(tokenStr string) (uint, error)
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "You are not authorized!",
				"data":    nil,
			})
		}

		userID, err := parser.Parse(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid token",
				"data":    nil,
			})
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// OptionalAuth attaches the caller identity when a valid session is present
// and lets anonymous requests through.
func OptionalAuth(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenStr := extractToken(c); tokenStr != "" {
			if userID, err := parser.Parse(tokenStr); err == nil {
				c.Locals(userIDLocal, userID)
			}
		}
		return c.Next()
	}
}

// CurrentUserID returns the authenticated caller, or auth.ErrUnauthenticated.
func CurrentUserID(c *fiber.Ctx) (uint, error) {
	userID, ok := c.Locals(userIDLocal).(uint)
	if !ok || userID == 0 {
		return 0, auth.ErrUnauthenticated
	}
	return userID, nil
}

func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") && len(authHeader) > 7 {
		return authHeader[7:]
	}
	return c.Cookies(CookieName)
}
