package authorize

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPolicies is the baseline RBAC matrix. Admins bypass it unless the
// bypass is disabled, hence their explicit wildcard row.
var DefaultPolicies = []PermissionPolicy{
	{RoleAdmin, WildcardDomain, WildcardResource, ActionManage, EffectAllow},

	{RoleManager, DomainSys, ResourceAppointment, ActionManage, EffectAllow},
	{RoleManager, DomainSys, ResourceBooking, ActionManage, EffectAllow},
	{RoleManager, DomainSys, ResourceEvent, ActionManage, EffectAllow},
	{RoleManager, DomainSys, ResourceSlot, ActionRead, EffectAllow},
	{RoleManager, DomainSys, ResourceCoupon, ActionManage, EffectAllow},
	{RoleManager, DomainSys, ResourceNotification, ActionManage, EffectAllow},
	{RoleManager, DomainSys, ResourceSettings, ActionRead, EffectAllow},

	{RoleProvider, WildcardDomain, ResourceSlot, ActionRead, EffectAllow},
	{RoleProvider, WildcardDomain, ResourceAppointment, ActionRead, EffectAllow},
	{RoleProvider, WildcardDomain, ResourceAppointment, ActionList, EffectAllow},
	{RoleProvider, WildcardDomain, ResourceBooking, ActionCreate, EffectAllow},
	{RoleProvider, WildcardDomain, ResourceEvent, ActionRead, EffectAllow},
	{RoleProvider, WildcardDomain, ResourceEvent, ActionUpdate, EffectAllow},
	{RoleProvider, WildcardDomain, ResourceSettings, ActionDelete, EffectDeny},

	{RoleCustomer, DomainSys, ResourceSlot, ActionRead, EffectAllow},
	{RoleCustomer, DomainSys, ResourceBooking, ActionCreate, EffectAllow},
	{RoleCustomer, DomainSys, ResourceBooking, ActionCancel, EffectAllow},
}

// SeedDefaultPolicies adds DefaultPolicies; existing rows are left alone.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	added := 0
	for _, p := range DefaultPolicies {
		ok, err := auth.AddPermission(ctx, p)
		if err != nil {
			return fmt.Errorf("seed %s %s %s: %w", p.Subject, p.Object, p.Action, err)
		}
		if ok {
			added++
		}
	}
	slog.InfoContext(ctx, "rbac policies seeded", "added", added, "total", len(DefaultPolicies))
	return nil
}

// AssignRole grants role to a user in domain (DomainSys for staff-wide
// roles, ProviderDomain for a single employee).
func AssignRole(ctx context.Context, auth IAuthorization, userID int64, role Role, domain Domain) error {
	if _, err := auth.AddRoleForUserInDomain(ctx, UserSubject(userID), role, domain); err != nil {
		return fmt.Errorf("assign %s to %d in %s: %w", role, userID, domain, err)
	}
	return nil
}

func RevokeRole(ctx context.Context, auth IAuthorization, userID int64, role Role, domain Domain) error {
	if _, err := auth.RemoveRoleForUserInDomain(ctx, UserSubject(userID), role, domain); err != nil {
		return fmt.Errorf("revoke %s from %d in %s: %w", role, userID, domain, err)
	}
	return nil
}
