package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

// SessionChecker reports whether a staff session is still open.
type SessionChecker interface {
	Valid(ctx context.Context, sid string, userID int64) (bool, error)
}

// AuthRequired validates a Bearer PASETO access token and checks its session.
// On success, stores *pasetotoken.Claims in c.Locals(pasetotoken.CtxKeyClaims)
// and on the request context.
func AuthRequired(mgr *pasetotoken.Manager, sessions SessionChecker) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := bearerClaims(c, mgr, pasetotoken.TokenTypeAccess)
		if !ok {
			return fiber.ErrUnauthorized
		}

		if claims.SessionID != "" {
			valid, err := sessions.Valid(c.Context(), claims.SessionID, claims.UserID)
			if err != nil {
				return err
			}
			if !valid {
				return fiber.ErrUnauthorized
			}
		}

		setClaims(c, claims)
		return c.Next()
	}
}

// CabinetOptional accepts a customer cabinet token when one is sent and
// lets the request through either way.
func CabinetOptional(mgr *pasetotoken.Manager) fiber.Handler {
	return func(c fiber.Ctx) error {
		if claims, ok := bearerClaims(c, mgr, pasetotoken.TokenTypeCabinet); ok {
			setClaims(c, claims)
		}
		return c.Next()
	}
}

func bearerClaims(c fiber.Ctx, mgr *pasetotoken.Manager, accept pasetotoken.TokenType) (*pasetotoken.Claims, bool) {
	h := c.Get("Authorization")
	if h == "" {
		return nil, false
	}

	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}

	claims, err := mgr.Verify(strings.TrimSpace(parts[1]), accept)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setClaims(c fiber.Ctx, claims *pasetotoken.Claims) {
	c.Locals(pasetotoken.CtxKeyClaims, claims)
	c.SetContext(reqctx.WithClaims(c.Context(), claims))
}
