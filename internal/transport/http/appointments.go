package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rdv-service/internal/service"
	"rdv-service/pkg/models"
)

// ListAppointments serves ?date= (one day), ?q= (search) or everything.
func (h *Handler) ListAppointments(c *fiber.Ctx) error {
	var (
		res service.ListResult
		err error
	)
	switch {
	case c.Query("date") != "":
		res, err = h.appointments.GetByDate(c.UserContext(), c.Query("date"))
	case c.Query("q") != "":
		res, err = h.appointments.Search(c.UserContext(), c.Query("q"))
	default:
		res, err = h.appointments.GetAll(c.UserContext())
	}
	if err != nil {
		return h.fail(c, "list appointments", err)
	}
	return c.JSON(fiber.Map{
		"data":    res.Appointments,
		"count":   len(res.Appointments),
		"source":  res.Source,
		"offline": res.Offline(),
	})
}

func (h *Handler) CreateAppointment(c *fiber.Ctx) error {
	var req models.AppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	res, err := h.appointments.Add(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "create appointment", err)
	}
	h.logger.Info("📅 [APPOINTMENT] created", zap.String("id", res.ID), zap.String("source", string(res.Source)))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"id":     res.ID,
		"source": res.Source,
	})
}

func (h *Handler) UpdateAppointment(c *fiber.Ctx) error {
	var patch models.AppointmentPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	src, err := h.appointments.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, "update appointment", err)
	}
	return c.JSON(fiber.Map{"status": "success", "source": src})
}

func (h *Handler) DeleteAppointment(c *fiber.Ctx) error {
	src, err := h.appointments.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "delete appointment", err)
	}
	return c.JSON(fiber.Map{"status": "success", "source": src})
}

func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var body struct {
		Status models.AppointmentStatus `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status is required"})
	}
	src, err := h.appointments.UpdateStatus(c.UserContext(), c.Params("id"), body.Status)
	if err != nil {
		return h.fail(c, "update status", err)
	}
	return c.JSON(fiber.Map{"status": "success", "source": src})
}

func (h *Handler) UpdatePayment(c *fiber.Ctx) error {
	var body struct {
		PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	}
	if err := c.BodyParser(&body); err != nil || body.PaymentStatus == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "paymentStatus is required"})
	}
	src, err := h.appointments.UpdatePaymentStatus(c.UserContext(), c.Params("id"), body.PaymentStatus)
	if err != nil {
		return h.fail(c, "update payment", err)
	}
	return c.JSON(fiber.Map{"status": "success", "source": src})
}
