package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"rdv-service/internal/middleware"
)

type RouterConfig struct {
	AppName        string
	AllowedOrigins string
	ServiceToken   string
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

// NewApp builds the fiber application with every route registered.
func NewApp(h *Handler, rc RouterConfig) *fiber.App {
	startTime := time.Now()
	if rc.AppName == "" {
		rc.AppName = "rdv-service"
	}
	if rc.AllowedOrigins == "" {
		rc.AllowedOrigins = "http://localhost:3000"
	}

	app := fiber.New(fiber.Config{
		AppName:               rc.AppName,
		ErrorHandler:          customErrorHandler(h.logger),
		DisableStartupMessage: true,
		BodyLimit:             maxImportSize,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     rc.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,X-Service-Token,Cache-Control",
		ExposeHeaders:    "Content-Type,Content-Disposition",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	if rc.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${ua}\n",
		}))
	}

	sessionAuth := middleware.SessionAuth(h.auth, h.logger)

	// 1. Password gate
	authRoutes := app.Group("/auth")
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/logout", sessionAuth, h.Logout)
	authRoutes.Get("/status", h.AuthStatus)

	// 2. Operator routes (logged in)
	v1 := app.Group("/v1", sessionAuth)
	v1.Get("/appointments", h.ListAppointments)
	v1.Post("/appointments", h.CreateAppointment)
	v1.Patch("/appointments/:id", h.UpdateAppointment)
	v1.Delete("/appointments/:id", h.DeleteAppointment)
	v1.Post("/appointments/:id/status", h.UpdateStatus)
	v1.Post("/appointments/:id/payment", h.UpdatePayment)
	v1.Get("/stats", h.Stats)
	v1.Get("/storage", h.Storage)
	v1.Get("/export", h.Export)
	v1.Post("/export/upload", h.UploadExport)
	v1.Post("/import", h.Import)
	v1.Post("/cleanup", h.Cleanup)
	v1.Post("/sync", h.Sync)

	// 3. Environment signals
	svc := app.Group("/svc/v1", middleware.ServiceAuth(rc.ServiceToken, h.logger))
	svc.Post("/network/online", h.NetworkOnline)
	svc.Post("/network/offline", h.NetworkOffline)

	app.Get("/health", func(c *fiber.Ctx) error {
		sel := h.appointments.Mode()
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   rc.AppName,
			"uptime":    time.Since(startTime).Round(time.Second).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"mode": fiber.Map{
				"locked":          sel.Locked(),
				"remoteHealthy":   sel.RemoteHealthy(),
				"online":          sel.Online(),
				"remotePermitted": sel.RemotePermitted(),
			},
		})
	})

	return app
}

func customErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var errMsg string
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			errMsg = e.Message
		} else {
			errMsg = err.Error()
		}
		log.Error("🔥 [ERROR]",
			zap.Int("code", code),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("error", errMsg),
			zap.String("ip", c.IP()),
			zap.String("ua", c.Get("User-Agent")),
		)
		return c.Status(code).JSON(fiber.Map{
			"error":      "something went wrong",
			"request_id": c.Get("X-Request-ID"),
		})
	}
}
