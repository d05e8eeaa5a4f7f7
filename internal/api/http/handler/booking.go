package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
)

// staff bookings skip the slot and custom field checks.
var staff = reservation.Validator{Coupon: true}

// CabinetIssuer hands customers a token for managing their own bookings.
type CabinetIssuer interface {
	IssueCabinet(customerID int64) (string, error)
}

type BookingHandler struct {
	cmd     command.Handler
	cabinet CabinetIssuer
}

// NewBookingHandler builds the booking endpoints. cabinet may be nil, in
// which case customers cancel by booking token only.
func NewBookingHandler(cmd command.Handler, cabinet CabinetIssuer) *BookingHandler {
	return &BookingHandler{cmd: cmd, cabinet: cabinet}
}

// POST /api/v1/bookings
func (h *BookingHandler) Create(c fiber.Ctx) error {
	res, err := h.create(c, reservation.FrontEnd)
	if err != nil || res == nil {
		return err
	}
	if b, ok := res.Data["booking"].(*domain.CustomerBooking); ok && res.IsSuccess() && h.cabinet != nil {
		tok, err := h.cabinet.IssueCabinet(b.CustomerID)
		if err != nil {
			slog.WarnContext(c.Context(), "issue cabinet token failed", "customer_id", b.CustomerID, "err", err)
		} else {
			res.Data["cabinetToken"] = tok
		}
	}
	return result(c, res, fiber.StatusCreated)
}

// POST /api/v1/admin/bookings
func (h *BookingHandler) CreateAsStaff(c fiber.Ctx) error {
	res, err := h.create(c, staff)
	if err != nil || res == nil {
		return err
	}
	return result(c, res, fiber.StatusCreated)
}

// create runs AddBooking. A nil Result means the response was already
// written.
func (h *BookingHandler) create(c fiber.Ctx, v reservation.Validator) (*command.Result, error) {
	var req reservation.BookingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, badRequest(c, "invalid request body")
	}

	res, err := h.cmd.AddBooking(c.Context(), req, v)
	if err != nil {
		return nil, commandError(c, err)
	}
	return res, nil
}

// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var body struct {
		Token string `json:"token"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	req := reservation.CancelRequest{BookingID: id, Token: body.Token}
	if claims, ok := pasetotoken.ClaimsFromFiber(c); ok && claims.Type == pasetotoken.TokenTypeCabinet {
		req.CustomerID = claims.UserID
	}
	return h.cancel(c, req)
}

// POST /api/v1/admin/bookings/:id/cancel
func (h *BookingHandler) CancelAsStaff(c fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	return h.cancel(c, reservation.CancelRequest{BookingID: id, Privileged: true})
}

func (h *BookingHandler) cancel(c fiber.Ctx, req reservation.CancelRequest) error {
	res, err := h.cmd.CancelBooking(c.Context(), req)
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}
