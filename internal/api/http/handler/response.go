package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/service/event"
	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

// failureStatus maps the data key of a failed Result to an HTTP status.
var failureStatus = map[string]int{
	string(reservation.KindTimeSlotUnavailable): fiber.StatusConflict,
	string(reservation.KindCustomerBooked):      fiber.StatusConflict,
	string(reservation.KindCancelUnavailable):   fiber.StatusConflict,
	string(reservation.KindRescheduleDenied):    fiber.StatusConflict,
	string(reservation.KindCouponUnknown):       fiber.StatusNotFound,
	string(reservation.KindCouponInvalid):       fiber.StatusUnprocessableEntity,
	string(reservation.KindPayment):             fiber.StatusPaymentRequired,
	string(reservation.KindEmail):               fiber.StatusBadRequest,
	command.KeyReauthorize:                      fiber.StatusForbidden,
}

// result writes a command Result as the response body. Failed results get
// the status of their data key.
func result(c fiber.Ctx, res *command.Result, okStatus int) error {
	if res.IsSuccess() {
		return c.Status(okStatus).JSON(res)
	}
	status := fiber.StatusBadRequest
	for key, s := range failureStatus {
		if res.Flag(key) {
			status = s
			break
		}
	}
	return c.Status(status).JSON(res)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(command.Failure(msg, nil))
}

// commandError answers for an error a command returned instead of a Result.
func commandError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, event.ErrNotFound), repo.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(command.Failure(err.Error(), nil))
	case errors.Is(err, event.ErrInvalidEvent),
		errors.Is(err, availability.ErrInvalidService):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(command.Failure(err.Error(), nil))
	case errors.Is(err, reservation.ErrUnknownType),
		errors.Is(err, reservation.ErrUploadsDisabled):
		return badRequest(c, err.Error())
	}

	slog.ErrorContext(c.Context(), "command failed",
		append(reqctx.LogAttrs(c.Context()), "path", c.Path(), "err", err)...)
	return c.Status(fiber.StatusInternalServerError).JSON(command.Failure("internal server error", nil))
}

func idParam(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(command.Failure("unauthorized", nil))
}
