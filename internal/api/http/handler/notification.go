package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
)

type NotificationHandler struct {
	cmd command.Handler
}

func NewNotificationHandler(cmd command.Handler) *NotificationHandler {
	return &NotificationHandler{cmd: cmd}
}

// POST /api/v1/admin/notifications/scheduled
func (h *NotificationHandler) SendScheduled(c fiber.Ctx) error {
	res, err := h.cmd.SendScheduledNotifications(c.Context())
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}
