// Package rbac implements the role/permission gate for back-office actors.
//
// The matching rules are intentionally string based: role and permission
// values are free text carried over from the legacy employee records, so the
// exact comparison rules below must not be tightened without migrating the
// stored data.
package rbac

import "strings"

// Well-known role names.
const (
	RoleSuperAdmin    = "Super Admin"
	RoleAdministrator = "Administrator"
	RoleManager       = "Manager"
)

// Permission strings that grant the finance capability.
const (
	PermFinance           = "Finance"
	PermFinanceManagement = "Finance Management"
	PermFinanceApproval   = "Finance Approval"
	permFinancePrefix     = "Finance:"
)

// Actor is the view of an employee the gate evaluates.
type Actor struct {
	Name        string
	Email       string
	Role        string
	Permissions []string
}

// Capability describes a required set of roles and/or permissions.
type Capability struct {
	Roles       []string
	Permissions []string
	RequireAll  bool
}

// IsSuperAdmin reports whether the actor holds the Super Admin role.
// Super Admin passes every capability check.
func IsSuperAdmin(a Actor) bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleSuperAdmin)
}

// HasCapability reports whether the actor satisfies the capability.
// With Permissions supplied, RequireAll demands every listed permission;
// otherwise any single match (role or permission) suffices.
func HasCapability(a Actor, cap Capability) bool {
	if IsSuperAdmin(a) {
		return true
	}

	if len(cap.Permissions) > 0 {
		if cap.RequireAll {
			for _, want := range cap.Permissions {
				if !hasPermission(a, want) {
					return false
				}
			}
			return true
		}
		for _, want := range cap.Permissions {
			if hasPermission(a, want) {
				return true
			}
		}
	}

	for _, role := range cap.Roles {
		if strings.EqualFold(strings.TrimSpace(a.Role), strings.TrimSpace(role)) {
			return true
		}
	}
	return false
}

// CanAdminApprove reports whether the actor may perform the admin stage of
// the approval workflow.
func CanAdminApprove(a Actor) bool {
	return HasCapability(a, Capability{Roles: []string{RoleSuperAdmin, RoleAdministrator, RoleManager}})
}

// HasFinanceCapability reports whether the actor may perform the finance
// stage. An actor qualifies when the role mentions finance, or any granted
// permission is one of the finance permissions or carries the "Finance:"
// prefix.
func HasFinanceCapability(a Actor) bool {
	if IsSuperAdmin(a) {
		return true
	}
	if strings.Contains(strings.ToLower(a.Role), "finance") {
		return true
	}
	for _, perm := range a.Permissions {
		perm = strings.TrimSpace(perm)
		if strings.EqualFold(perm, PermFinance) ||
			strings.EqualFold(perm, PermFinanceManagement) ||
			strings.EqualFold(perm, PermFinanceApproval) ||
			strings.HasPrefix(perm, permFinancePrefix) {
			return true
		}
	}
	return false
}

func hasPermission(a Actor, want string) bool {
	want = strings.TrimSpace(want)
	for _, perm := range a.Permissions {
		if strings.EqualFold(strings.TrimSpace(perm), want) {
			return true
		}
	}
	return false
}
