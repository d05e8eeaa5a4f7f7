package pasetotoken

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/config"
)

// CtxKeyClaims is the fiber Locals key the auth middleware stores claims under.
const CtxKeyClaims = "auth.claims"

func ClaimsFromFiber(c fiber.Ctx) (*Claims, bool) {
	cl, ok := c.Locals(CtxKeyClaims).(*Claims)
	return cl, ok && cl != nil
}

// NewFromCentral builds a Manager from authentication.paseto.
func NewFromCentral(cfg config.PasetoConfig) (*Manager, error) {
	mode := Mode(cfg.Mode)
	keys, err := LoadKeys(KeyStrings{
		Mode:         mode,
		SymmetricHex: cfg.LocalKeyHex,
		SecretHex:    cfg.SecretKeyHex,
		PublicHex:    cfg.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}
	return New(Config{
		Mode:       mode,
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
		CabinetTTL: time.Duration(cfg.CabinetTTLDays) * 24 * time.Hour,
	}, keys)
}
