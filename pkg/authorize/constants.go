package authorize

import (
	"strconv"
	"strings"
)

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
	ActionCancel Action = "cancel"

	// ActionManage matches every other action through the model's keyMatch.
	ActionManage Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {}, ActionCancel: {},
	ActionManage: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	ResourceAppointment  Resource = "appointment"
	ResourceBooking      Resource = "booking"
	ResourceEvent        Resource = "event"
	ResourceSlot         Resource = "slot"
	ResourceCoupon       Resource = "coupon"
	ResourceNotification Resource = "notification"
	ResourceSettings     Resource = "settings"
	ResourceRBAC         Resource = "rbac"
	ResourceSystem       Resource = "system"
)

var KnownResources = map[Resource]struct{}{
	ResourceAppointment: {}, ResourceBooking: {}, ResourceEvent: {}, ResourceSlot: {},
	ResourceCoupon: {}, ResourceNotification: {}, ResourceSettings: {},
	ResourceRBAC: {}, ResourceSystem: {},
}

// ----------------------------
// Roles
// ----------------------------

const (
	RoleAdmin    Role = "role:admin"
	RoleManager  Role = "role:manager"
	RoleProvider Role = "role:provider"
	RoleCustomer Role = "role:customer"
)

var KnownRoles = map[Role]struct{}{
	RoleAdmin: {}, RoleManager: {}, RoleProvider: {}, RoleCustomer: {},
}

// RoleFromName accepts both "manager" and "role:manager".
func RoleFromName(name string) (Role, bool) {
	r := Role(name)
	if !strings.HasPrefix(name, "role:") {
		r = Role("role:" + name)
	}
	_, ok := KnownRoles[r]
	return r, ok
}

// Name is the role without its prefix, as carried in token claims.
func (r Role) Name() string { return strings.TrimPrefix(string(r), "role:") }

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys      Domain = "sys"
	WildcardDomain Domain = "*"

	DomainPrefixProvider = "provider:"
)

// ProviderDomain scopes grants to one employee's calendar.
func ProviderDomain(providerID int64) Domain {
	return Domain(DomainPrefixProvider + strconv.FormatInt(providerID, 10))
}

func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}
	id, ok := strings.CutPrefix(string(d), DomainPrefixProvider)
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	return err == nil && n > 0
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a user id.
type GroupSubject string

func UserSubject(userID int64) GroupSubject {
	return GroupSubject(strconv.FormatInt(userID, 10))
}

// PermissionPolicy is a p row: role, domain, resource, action, eft.
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
