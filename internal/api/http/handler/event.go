package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

type EventHandler struct {
	cmd command.Handler
}

func NewEventHandler(cmd command.Handler) *EventHandler {
	return &EventHandler{cmd: cmd}
}

func applyGlobally(c fiber.Ctx) bool {
	v, _ := strconv.ParseBool(c.Query("applyGlobally"))
	return v
}

// POST /api/v1/admin/events
func (h *EventHandler) Create(c fiber.Ctx) error {
	var e domain.Event
	if err := c.Bind().JSON(&e); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.cmd.AddEvent(c.Context(), &e)
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusCreated)
}

// PATCH /api/v1/admin/events/:id
func (h *EventHandler) Update(c fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid event id")
	}
	var changes domain.Event
	if err := c.Bind().JSON(&changes); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.cmd.UpdateEvent(c.Context(), id, &changes, applyGlobally(c))
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}

// PATCH /api/v1/admin/events/:id/status
func (h *EventHandler) UpdateStatus(c fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid event id")
	}
	var body struct {
		Status        domain.BookingStatus `json:"status"`
		ApplyGlobally bool                 `json:"applyGlobally"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	switch body.Status {
	case domain.StatusApproved, domain.StatusRejected, domain.StatusCanceled:
	default:
		return badRequest(c, "invalid status")
	}

	res, err := h.cmd.UpdateEventStatus(c.Context(), id, body.Status, body.ApplyGlobally)
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}

// DELETE /api/v1/admin/events/:id
func (h *EventHandler) Delete(c fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid event id")
	}

	res, err := h.cmd.DeleteEvent(c.Context(), id, applyGlobally(c))
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}
