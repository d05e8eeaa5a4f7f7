package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

type Config struct {
	Mode Mode

	Issuer   string
	Audience string

	AccessTTL  time.Duration
	CabinetTTL time.Duration

	Implicit []byte
}

// Manager issues and verifies v4 tokens in either local or public mode.
type Manager struct {
	cfg  Config
	keys Keys
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, fmt.Errorf("%w: cfg.Mode must match keys.Mode", ErrConfig)
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("%w: Issuer is required", ErrConfig)
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("%w: Audience is required", ErrConfig)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.CabinetTTL <= 0 {
		cfg.CabinetTTL = 7 * 24 * time.Hour
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// IssueAccess issues a staff token. sessionID ties it to a revocable
// session; it may be empty for tokens that live until they expire.
func (m *Manager) IssueAccess(userID int64, role, sessionID string) (string, error) {
	return m.issue(TokenTypeAccess, userID, role, sessionID, m.cfg.AccessTTL)
}

// IssueCabinet issues a customer token.
func (m *Manager) IssueCabinet(customerID int64) (string, error) {
	return m.issue(TokenTypeCabinet, customerID, "customer", "", m.cfg.CabinetTTL)
}

// Verify checks tokenStr and returns its claims. When accept is non-empty
// the token's type must be one of them.
func (m *Manager) Verify(tokenStr string, accept ...TokenType) (*Claims, error) {
	// The parser's time rules are evaluated against construction time, so
	// build one per call.
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.cfg.Issuer))
	p.AddRule(paseto.ForAudience(m.cfg.Audience))
	p.AddRule(paseto.NotExpired())
	p.AddRule(paseto.ValidAt(time.Now()))

	var (
		tok *paseto.Token
		err error
	)
	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return nil, fmt.Errorf("%w: missing symmetric key", ErrConfig)
		}
		tok, err = p.ParseV4Local(*m.keys.Symmetric, tokenStr, m.cfg.Implicit)
	case ModePublic:
		if m.keys.Public == nil {
			return nil, fmt.Errorf("%w: missing public key", ErrConfig)
		}
		tok, err = p.ParseV4Public(*m.keys.Public, tokenStr, m.cfg.Implicit)
	default:
		return nil, fmt.Errorf("%w: unknown mode", ErrConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, err := extractClaims(tok, m.cfg.Issuer, m.cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if len(accept) > 0 && !slices.Contains(accept, claims.Type) {
		return nil, fmt.Errorf("%w: %q", ErrTokenType, claims.Type)
	}
	return claims, nil
}

func (m *Manager) issue(tt TokenType, userID int64, role, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))

	uid := strconv.FormatInt(userID, 10)
	tok.SetSubject(uid)
	tok.SetString("typ", string(tt))
	tok.SetString("uid", uid)
	tok.SetString("role", role)
	if sessionID != "" {
		tok.SetString("sid", sessionID)
	}

	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return "", fmt.Errorf("%w: missing symmetric key", ErrConfig)
		}
		return tok.V4Encrypt(*m.keys.Symmetric, m.cfg.Implicit), nil
	case ModePublic:
		if m.keys.Secret == nil {
			return "", fmt.Errorf("%w: missing secret key", ErrConfig)
		}
		return tok.V4Sign(*m.keys.Secret, m.cfg.Implicit), nil
	default:
		return "", fmt.Errorf("%w: unknown mode", ErrConfig)
	}
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func extractClaims(tok *paseto.Token, iss, aud string) (*Claims, error) {
	jti, err := tok.GetJti()
	if err != nil {
		return nil, err
	}
	iat, err := tok.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	nbf, err := tok.GetNotBefore()
	if err != nil {
		return nil, err
	}
	exp, err := tok.GetExpiration()
	if err != nil {
		return nil, err
	}

	out := &Claims{
		Issuer:    iss,
		Audience:  aud,
		TokenID:   jti,
		IssuedAt:  iat,
		NotBefore: nbf,
		ExpiresAt: exp,
	}

	typ, err := tok.GetString("typ")
	if err != nil {
		return nil, err
	}
	out.Type = TokenType(typ)

	uidStr, err := tok.GetString("uid")
	if err != nil {
		return nil, err
	}
	if out.UserID, err = strconv.ParseInt(uidStr, 10, 64); err != nil {
		return nil, err
	}

	// role and sid are optional
	if role, err := tok.GetString("role"); err == nil {
		out.Role = role
	}
	if sid, err := tok.GetString("sid"); err == nil {
		out.SessionID = sid
	}
	return out, nil
}
