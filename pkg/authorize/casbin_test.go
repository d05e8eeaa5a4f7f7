package authorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

func createTestEnforcer(t *testing.T) *casbin.Enforcer {
	t.Helper()

	policyPath := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(policyPath, nil, 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	m, err := LoadModel("")
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	e, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
	if err != nil {
		t.Fatalf("create enforcer: %v", err)
	}
	e.EnableAutoSave(false)
	return e
}

func seeded(t *testing.T, opts ...Option) *Authorization {
	t.Helper()
	auth, err := NewAuthorization(createTestEnforcer(t), opts...)
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}
	if err := SeedDefaultPolicies(context.Background(), auth); err != nil {
		t.Fatalf("SeedDefaultPolicies: %v", err)
	}
	return auth
}

func TestNewAuthorizationRejectsNil(t *testing.T) {
	if _, err := NewAuthorization(nil); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("err = %v", err)
	}
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	auth := seeded(t)

	grants := []struct {
		user   int64
		role   Role
		domain Domain
	}{
		{1, RoleAdmin, DomainSys},
		{2, RoleManager, DomainSys},
		{3, RoleProvider, ProviderDomain(30)},
		{4, RoleCustomer, DomainSys},
	}
	for _, g := range grants {
		if err := AssignRole(ctx, auth, g.user, g.role, g.domain); err != nil {
			t.Fatalf("AssignRole: %v", err)
		}
	}

	tests := []struct {
		name   string
		user   int64
		domain Domain
		object Resource
		action Action
		want   bool
	}{
		{"admin anything", 1, DomainSys, ResourceRBAC, ActionUpdate, true},
		{"manager deletes events", 2, DomainSys, ResourceEvent, ActionDelete, true},
		{"manager cannot touch rbac", 2, DomainSys, ResourceRBAC, ActionUpdate, false},
		{"manager reads settings", 2, DomainSys, ResourceSettings, ActionRead, true},
		{"manager cannot change settings", 2, DomainSys, ResourceSettings, ActionUpdate, false},
		{"provider updates events in own domain", 3, ProviderDomain(30), ResourceEvent, ActionUpdate, true},
		{"provider has nothing in another domain", 3, ProviderDomain(31), ResourceEvent, ActionUpdate, false},
		{"provider has nothing in sys", 3, DomainSys, ResourceSlot, ActionRead, false},
		{"customer books", 4, DomainSys, ResourceBooking, ActionCreate, true},
		{"customer cancels", 4, DomainSys, ResourceBooking, ActionCancel, true},
		{"customer cannot delete events", 4, DomainSys, ResourceEvent, ActionDelete, false},
		{"stranger", 99, DomainSys, ResourceSlot, ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Enforce(ctx, UserSubject(tt.user), tt.domain, tt.object, tt.action)
			if err != nil {
				t.Fatalf("Enforce: %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnforceRejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	auth := seeded(t)

	tests := []struct {
		name    string
		subject GroupSubject
		domain  Domain
		object  Resource
		action  Action
	}{
		{"empty subject", "", DomainSys, ResourceSlot, ActionRead},
		{"wildcard domain", "1", WildcardDomain, ResourceSlot, ActionRead},
		{"bad provider domain", "1", Domain("provider:abc"), ResourceSlot, ActionRead},
		{"unknown resource", "1", DomainSys, Resource("patient"), ActionRead},
		{"manage is not a request action", "1", DomainSys, ResourceSlot, ActionManage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Enforce(ctx, tt.subject, tt.domain, tt.object, tt.action); !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("err = %v, want ErrInvalidArgs", err)
			}
		})
	}
}

func TestSuperadminBypass(t *testing.T) {
	ctx := context.Background()

	// Without the wildcard row the admin relies on the bypass alone.
	bypass, err := NewAuthorization(createTestEnforcer(t))
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}
	strict, err := NewAuthorization(createTestEnforcer(t), WithoutSuperadminBypass())
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}
	for _, a := range []*Authorization{bypass, strict} {
		if err := AssignRole(ctx, a, 1, RoleAdmin, DomainSys); err != nil {
			t.Fatalf("AssignRole: %v", err)
		}
	}

	if err := bypass.MustEnforce(ctx, "1", DomainSys, ResourceSettings, ActionUpdate); err != nil {
		t.Errorf("bypass: %v", err)
	}
	if err := strict.MustEnforce(ctx, "1", DomainSys, ResourceSettings, ActionUpdate); !errors.Is(err, ErrForbidden) {
		t.Errorf("strict: %v, want ErrForbidden", err)
	}
}

func TestRoleManagement(t *testing.T) {
	ctx := context.Background()
	auth := seeded(t)

	if err := AssignRole(ctx, auth, 5, RoleManager, DomainSys); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	roles, err := auth.GetRolesForUserInDomain(ctx, UserSubject(5), DomainSys)
	if err != nil || len(roles) != 1 || roles[0] != RoleManager {
		t.Fatalf("roles = %v, %v", roles, err)
	}

	if err := RevokeRole(ctx, auth, 5, RoleManager, DomainSys); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if err := Can(reqctx.WithClaims(ctx, user(5)), auth, ResourceEvent, ActionDelete); !errors.Is(err, ErrForbidden) {
		t.Errorf("after revoke: %v", err)
	}

	if _, err := auth.AddRoleForUserInDomain(ctx, "5", Role("role:owner"), DomainSys); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("unknown role: %v", err)
	}
}

func TestPermissionManagement(t *testing.T) {
	ctx := context.Background()
	auth := seeded(t)
	if err := AssignRole(ctx, auth, 4, RoleCustomer, DomainSys); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	deny := PermissionPolicy{RoleCustomer, DomainSys, ResourceBooking, ActionCancel, EffectDeny}
	if ok, err := auth.AddPermission(ctx, deny); err != nil || !ok {
		t.Fatalf("AddPermission = %v, %v", ok, err)
	}
	if err := auth.MustEnforce(ctx, "4", DomainSys, ResourceBooking, ActionCancel); !errors.Is(err, ErrForbidden) {
		t.Errorf("deny row ignored: %v", err)
	}
	if ok, err := auth.RemovePermission(ctx, deny); err != nil || !ok {
		t.Fatalf("RemovePermission = %v, %v", ok, err)
	}
	if err := auth.MustEnforce(ctx, "4", DomainSys, ResourceBooking, ActionCancel); err != nil {
		t.Errorf("after removing deny: %v", err)
	}

	bad := PermissionPolicy{RoleCustomer, DomainSys, ResourceBooking, ActionCancel, PolicyEffect("maybe")}
	if _, err := auth.AddPermission(ctx, bad); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("bad effect: %v", err)
	}
}

func TestRoleFromName(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"manager", RoleManager, true},
		{"role:customer", RoleCustomer, true},
		{"owner", "role:owner", false},
	}
	for _, tt := range tests {
		got, ok := RoleFromName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RoleFromName(%q) = %q, %v", tt.in, got, ok)
		}
	}
	if RoleProvider.Name() != "provider" {
		t.Errorf("Name = %q", RoleProvider.Name())
	}
}

func TestIsValidDomain(t *testing.T) {
	tests := []struct {
		domain Domain
		want   bool
	}{
		{DomainSys, true},
		{WildcardDomain, true},
		{ProviderDomain(12), true},
		{Domain("provider:"), false},
		{Domain("provider:-3"), false},
		{Domain("tenant:12"), false},
		{Domain(""), false},
	}
	for _, tt := range tests {
		if got := IsValidDomain(tt.domain); got != tt.want {
			t.Errorf("IsValidDomain(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

type user int64

func (u user) GetUserID() int64     { return int64(u) }
func (u user) GetRole() string      { return "" }
func (u user) GetTokenType() string { return "access" }
func (u user) IsExpired() bool      { return false }

func TestSubjectFromContext(t *testing.T) {
	if _, err := SubjectFromContext(context.Background()); !errors.Is(err, ErrNoSubjectInContext) {
		t.Errorf("empty context: %v", err)
	}
	s, err := SubjectFromContext(reqctx.WithClaims(context.Background(), user(8)))
	if err != nil || s != "8" {
		t.Errorf("subject = %q, %v", s, err)
	}
}
