package pasetotoken

import (
	"fmt"
	"strings"

	paseto "aidanwoods.dev/go-paseto"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local, encrypted
	ModePublic Mode = "public" // v4.public, signed
)

type Keys struct {
	Mode Mode

	Symmetric *paseto.V4SymmetricKey

	Secret *paseto.V4AsymmetricSecretKey
	Public *paseto.V4AsymmetricPublicKey
}

// KeyStrings is the hex form kept in config.
type KeyStrings struct {
	Mode Mode

	SymmetricHex string
	SecretHex    string
	PublicHex    string
}

func LoadKeys(in KeyStrings) (Keys, error) {
	switch in.Mode {
	case ModeLocal:
		h := strings.TrimSpace(in.SymmetricHex)
		if h == "" {
			return Keys{}, fmt.Errorf("%w: local mode requires a symmetric key", ErrConfig)
		}
		k, err := paseto.V4SymmetricKeyFromHex(h)
		if err != nil {
			return Keys{}, fmt.Errorf("%w: invalid symmetric key hex: %w", ErrConfig, err)
		}
		return Keys{Mode: ModeLocal, Symmetric: &k}, nil

	case ModePublic:
		out := Keys{Mode: ModePublic}

		// A secret key alone is enough; the public half is derived. A public
		// key alone gives a verify-only manager.
		if h := strings.TrimSpace(in.SecretHex); h != "" {
			sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(h)
			if err != nil {
				return Keys{}, fmt.Errorf("%w: invalid secret key hex: %w", ErrConfig, err)
			}
			pk := sk.Public()
			out.Secret, out.Public = &sk, &pk
		}
		if h := strings.TrimSpace(in.PublicHex); h != "" {
			pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(h)
			if err != nil {
				return Keys{}, fmt.Errorf("%w: invalid public key hex: %w", ErrConfig, err)
			}
			out.Public = &pk
		}
		if out.Public == nil {
			return Keys{}, fmt.Errorf("%w: public mode requires a secret or public key", ErrConfig)
		}
		return out, nil

	default:
		return Keys{}, fmt.Errorf("%w: unknown mode (use local|public)", ErrConfig)
	}
}

// GenerateKeys creates fresh keys for mode.
func GenerateKeys(mode Mode) (Keys, error) {
	switch mode {
	case ModeLocal:
		k := paseto.NewV4SymmetricKey()
		return Keys{Mode: ModeLocal, Symmetric: &k}, nil
	case ModePublic:
		sk := paseto.NewV4AsymmetricSecretKey()
		pk := sk.Public()
		return Keys{Mode: ModePublic, Secret: &sk, Public: &pk}, nil
	default:
		return Keys{}, fmt.Errorf("%w: unknown mode (use local|public)", ErrConfig)
	}
}

// Strings exports k in the form LoadKeys reads.
func (k Keys) Strings() KeyStrings {
	out := KeyStrings{Mode: k.Mode}
	if k.Symmetric != nil {
		out.SymmetricHex = k.Symmetric.ExportHex()
	}
	if k.Secret != nil {
		out.SecretHex = k.Secret.ExportHex()
	}
	if k.Public != nil {
		out.PublicHex = k.Public.ExportHex()
	}
	return out
}
