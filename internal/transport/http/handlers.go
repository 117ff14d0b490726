// internal/transport/http/handlers.go
package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rdv-service/internal/apperr"
	"rdv-service/internal/middleware"
	"rdv-service/internal/service"
	rdvsync "rdv-service/internal/sync"
)

// Authenticator is the password gate behind /auth.
type Authenticator interface {
	Login(ctx context.Context, password string) (string, error)
	Logout(ctx context.Context) error
	ValidSession(ctx context.Context, token string) bool
}

type Handler struct {
	appointments  *service.AppointmentService
	auth          Authenticator
	reconciler    *rdvsync.ReconcileService
	retentionDays int
	logger        *zap.Logger
}

func NewHandler(appointments *service.AppointmentService, auth Authenticator, reconciler *rdvsync.ReconcileService, retentionDays int, logger *zap.Logger) *Handler {
	return &Handler{
		appointments:  appointments,
		auth:          auth,
		reconciler:    reconciler,
		retentionDays: retentionDays,
		logger:        logger.Named("http"),
	}
}

// statusFor maps error kinds onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrInvalidImport):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidPassword):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrSyncUnavailable):
		return fiber.StatusConflict
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return fiber.StatusInsufficientStorage
	case errors.Is(err, apperr.ErrRemoteUnavailable), errors.Is(err, apperr.ErrNotConfigured):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes the error body. Server side failures are logged, client
// mistakes are not.
func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		h.logger.Error("❌ "+op+" failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login opens a session. The token goes into an HttpOnly cookie for the
// browser and into the body for bearer clients.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	token, err := h.auth.Login(c.UserContext(), req.Password)
	if err != nil {
		return h.fail(c, "login", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"status": "success", "authenticated": true, "token": token})
}

// Logout sits behind SessionAuth, so only the session holder reaches it.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext()); err != nil {
		return h.fail(c, "logout", err)
	}
	c.ClearCookie(middleware.SessionCookie)
	return c.JSON(fiber.Map{"status": "success", "authenticated": false})
}

// AuthStatus reports whether this request carries the open session.
func (h *Handler) AuthStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authenticated": h.auth.ValidSession(c.UserContext(), middleware.SessionToken(c))})
}

// NetworkOnline is the environment's "connection restored" signal.
func (h *Handler) NetworkOnline(c *fiber.Ctx) error {
	res, err := h.reconciler.HandleOnline(c.UserContext())
	if err != nil && !errors.Is(err, apperr.ErrSyncUnavailable) {
		return h.fail(c, "online transition", err)
	}
	return c.JSON(fiber.Map{
		"status": "online",
		"synced": res.Synced,
		"total":  res.Total,
	})
}

func (h *Handler) NetworkOffline(c *fiber.Ctx) error {
	h.reconciler.HandleOffline(c.UserContext())
	return c.JSON(fiber.Map{"status": "offline"})
}
