package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
)

type AppointmentHandler struct {
	cmd command.Handler
}

func NewAppointmentHandler(cmd command.Handler) *AppointmentHandler {
	return &AppointmentHandler{cmd: cmd}
}

type rescheduleBody struct {
	BookingStart time.Time `json:"bookingStart"`
}

// POST /api/v1/appointments/:id/reschedule
func (h *AppointmentHandler) Reschedule(c fiber.Ctx) error {
	claims, ok := pasetotoken.ClaimsFromFiber(c)
	if !ok || claims.Type != pasetotoken.TokenTypeCabinet {
		return unauthorized(c)
	}
	return h.reschedule(c, reservation.RescheduleRequest{CustomerID: claims.UserID})
}

// PATCH /api/v1/admin/appointments/:id/time
func (h *AppointmentHandler) RescheduleAsStaff(c fiber.Ctx) error {
	return h.reschedule(c, reservation.RescheduleRequest{Privileged: true})
}

func (h *AppointmentHandler) reschedule(c fiber.Ctx, req reservation.RescheduleRequest) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}
	var body rescheduleBody
	if err := c.Bind().JSON(&body); err != nil || body.BookingStart.IsZero() {
		return badRequest(c, "invalid request body")
	}
	req.AppointmentID = id
	req.BookingStart = body.BookingStart

	res, err := h.cmd.RescheduleAppointment(c.Context(), req)
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}

// PATCH /api/v1/admin/appointments/:id/status
func (h *AppointmentHandler) UpdateStatus(c fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid appointment id")
	}
	var body struct {
		Status domain.BookingStatus `json:"status"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if !body.Status.Valid() {
		return badRequest(c, "invalid status")
	}

	res, err := h.cmd.UpdateAppointmentStatus(c.Context(), reservation.StatusRequest{AppointmentID: id, Status: body.Status})
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}
