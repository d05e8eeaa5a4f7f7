package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"

	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
)

// SessionRevoker ends a staff session so its access token stops working.
type SessionRevoker interface {
	Revoke(ctx context.Context, sid string) error
}

type AuthHandler struct {
	sessions SessionRevoker
}

func NewAuthHandler(sessions SessionRevoker) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	claims, ok := pasetotoken.ClaimsFromFiber(c)
	if !ok {
		return unauthorized(c)
	}
	if claims.SessionID != "" {
		if err := h.sessions.Revoke(c.Context(), claims.SessionID); err != nil {
			return commandError(c, err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c fiber.Ctx) error {
	claims, ok := pasetotoken.ClaimsFromFiber(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"userId":    claims.UserID,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt,
	}})
}
