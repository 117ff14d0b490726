package http

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// maxImportSize bounds the uploaded import document.
const maxImportSize = 10 << 20

func (h *Handler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	return c.JSON(fiber.Map{
		"appointments": h.appointments.Local().Stats(ctx),
		"data":         h.appointments.DataStats(ctx),
	})
}

func (h *Handler) Storage(c *fiber.Ctx) error {
	return c.JSON(h.appointments.Local().Size(c.UserContext()))
}

func (h *Handler) Export(c *fiber.Ctx) error {
	blob, err := h.appointments.Local().Export(c.UserContext())
	if err != nil {
		return h.fail(c, "export", err)
	}
	name := fmt.Sprintf("rdv_export_%s.json", time.Now().UTC().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Send(blob)
}

// Import takes the document either as a multipart "file" field or as the
// raw request body.
func (h *Handler) Import(c *fiber.Ctx) error {
	blob, err := importBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	n, err := h.appointments.Local().Import(c.UserContext(), blob)
	if err != nil {
		return h.fail(c, "import", err)
	}
	h.logger.Info("📥 [IMPORT] local data replaced", zap.Int("records", n))
	return c.JSON(fiber.Map{"status": "success", "imported": n})
}

func importBody(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		body := c.Body()
		if len(body) == 0 {
			return nil, fmt.Errorf("empty import document")
		}
		return body, nil
	}
	if fh.Size > maxImportSize {
		return nil, fmt.Errorf("import document too large (%d bytes)", fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Cleanup accepts ?days=, defaulting to the configured retention.
func (h *Handler) Cleanup(c *fiber.Ctx) error {
	days := h.retentionDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be a non-negative integer"})
		}
		days = n
	}
	removed, err := h.appointments.Local().Cleanup(c.UserContext(), days)
	if err != nil {
		return h.fail(c, "cleanup", err)
	}
	return c.JSON(fiber.Map{"status": "success", "removed": removed, "retentionDays": days})
}

func (h *Handler) Sync(c *fiber.Ctx) error {
	res, err := h.reconciler.Reconcile(c.UserContext())
	if err != nil {
		return h.fail(c, "sync", err)
	}
	return c.JSON(fiber.Map{"status": "success", "synced": res.Synced, "total": res.Total})
}

func (h *Handler) UploadExport(c *fiber.Ctx) error {
	url, err := h.reconciler.UploadExport(c.UserContext())
	if err != nil {
		return h.fail(c, "export upload", err)
	}
	return c.JSON(fiber.Map{"status": "success", "url": url})
}
