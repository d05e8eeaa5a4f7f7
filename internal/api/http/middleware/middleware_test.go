package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

type sessionSet map[string]int64

func (s sessionSet) Valid(_ context.Context, sid string, userID int64) (bool, error) {
	uid, ok := s[sid]
	return ok && uid == userID, nil
}

// allowOnly permits a single subject.
type allowOnly struct {
	authorize.IAuthorization
	subject authorize.GroupSubject
}

func (a allowOnly) MustEnforce(_ context.Context, sub authorize.GroupSubject, _ authorize.Domain, _ authorize.Resource, _ authorize.Action) error {
	if sub != a.subject {
		return authorize.ErrForbidden
	}
	return nil
}

func newManager(t *testing.T) *pasetotoken.Manager {
	t.Helper()
	keys, err := pasetotoken.GenerateKeys(pasetotoken.ModeLocal)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	m, err := pasetotoken.New(pasetotoken.Config{Mode: pasetotoken.ModeLocal, Issuer: "booking", Audience: "booking-api"}, keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func status(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestAuthRequired(t *testing.T) {
	mgr := newManager(t)
	sessions := sessionSet{"open": 5}

	app := fiber.New()
	app.Get("/", AuthRequired(mgr, sessions), RequirePermission(allowOnly{subject: authorize.UserSubject(5)}, authorize.ResourceEvent, authorize.ActionUpdate), func(c fiber.Ctx) error {
		if uid, ok := reqctx.UserIDFromContext(c.Context()); !ok || uid != 5 {
			return fiber.ErrTeapot
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	issue := func(userID int64, sid string) string {
		tok, err := mgr.IssueAccess(userID, "manager", sid)
		if err != nil {
			t.Fatalf("IssueAccess: %v", err)
		}
		return tok
	}
	cabinet, err := mgr.IssueCabinet(5)
	if err != nil {
		t.Fatalf("IssueCabinet: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "v4.local.nope", http.StatusUnauthorized},
		{"open session", issue(5, "open"), http.StatusNoContent},
		{"closed session", issue(5, "gone"), http.StatusUnauthorized},
		{"session of someone else", issue(6, "open"), http.StatusUnauthorized},
		{"no permission", issue(6, ""), http.StatusForbidden},
		{"cabinet token", cabinet, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status(t, app, tt.token); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCabinetOptional(t *testing.T) {
	mgr := newManager(t)
	app := fiber.New()
	app.Get("/", CabinetOptional(mgr), func(c fiber.Ctx) error {
		if claims, ok := pasetotoken.ClaimsFromFiber(c); ok {
			return c.SendString(claims.GetTokenType())
		}
		return c.SendString("anonymous")
	})

	cabinet, _ := mgr.IssueCabinet(3)
	access, _ := mgr.IssueAccess(3, "manager", "")
	for _, tok := range []string{"", "junk", cabinet, access} {
		if got := status(t, app, tok); got != http.StatusOK {
			t.Errorf("token %q: status = %d", tok, got)
		}
	}
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequestID(), func(c fiber.Ctx) error {
		return c.SendString(reqctx.RequestIDFromContext(c.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(HeaderRequestID) != "req-1" {
		t.Errorf("header = %q", resp.Header.Get(HeaderRequestID))
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Error("no request id generated")
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		rid  string
		want bool
	}{
		{"req-1", true},
		{"", false},
		{"has space", false},
		{strings.Repeat("a", maxRequestIDLen), true},
		{strings.Repeat("a", maxRequestIDLen+1), false},
		{"tab\tid", false},
	}
	for _, tt := range tests {
		if got := validRequestID(tt.rid); got != tt.want {
			t.Errorf("validRequestID(%q) = %v, want %v", tt.rid, got, tt.want)
		}
	}
}
