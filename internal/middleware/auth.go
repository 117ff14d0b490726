// internal/middleware/auth.go
package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SessionCookie carries the token issued by a successful login.
const SessionCookie = "rdv_session"

// Authenticator is the password gate seen by the HTTP layer.
type Authenticator interface {
	ValidSession(ctx context.Context, token string) bool
}

// SessionToken reads the session cookie, then a bearer Authorization header.
func SessionToken(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}
	if authHeader := c.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// SessionAuth rejects requests that do not present the current session token.
func SessionAuth(gate Authenticator, logger *zap.Logger) fiber.Handler {
	logger = logger.Named("session-auth")
	return func(c *fiber.Ctx) error {
		if !gate.ValidSession(c.UserContext(), SessionToken(c)) {
			logger.Info("[SESSION-AUTH] ❌ REJECTED", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: login required",
			})
		}
		return c.Next()
	}
}

// ServiceAuth accepts X-Service-Token or a bearer Authorization header.
func ServiceAuth(expected string, logger *zap.Logger) fiber.Handler {
	logger = logger.Named("service-auth")
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if expected == "" || token != expected {
			logger.Warn("[SERVICE-AUTH] ❌ REJECTED",
				zap.String("ip", c.IP()), zap.String("path", c.Path()), zap.String("token", MaskToken(token)))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: invalid or missing service token",
			})
		}
		logger.Info("[SERVICE-AUTH] ✅ ACCEPTED", zap.String("ip", c.IP()), zap.String("path", c.Path()))
		return c.Next()
	}
}

// MaskToken keeps the first six characters only.
func MaskToken(token string) string {
	switch {
	case token == "":
		return "<empty>"
	case len(token) > 6:
		return token[:6] + "..."
	default:
		return token
	}
}
