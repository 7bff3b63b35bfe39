package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuperAdminShortCircuitsEveryCheck(t *testing.T) {
	admin := Actor{Name: "Agnes", Role: "Super Admin"}

	require.True(t, HasCapability(admin, Capability{Roles: []string{"Finance"}}))
	require.True(t, HasCapability(admin, Capability{Permissions: []string{"Payroll", "Treasury"}, RequireAll: true}))
	require.True(t, CanAdminApprove(admin))
	require.True(t, HasFinanceCapability(admin))
}

func TestClerkWithoutPermissionsIsDenied(t *testing.T) {
	clerk := Actor{Name: "Okello", Role: "Clerk", Permissions: []string{}}

	require.False(t, HasCapability(clerk, Capability{Roles: []string{"Finance"}}))
	require.False(t, CanAdminApprove(clerk))
	require.False(t, HasFinanceCapability(clerk))
}

func TestAdminApproveRoles(t *testing.T) {
	require.True(t, CanAdminApprove(Actor{Role: "Administrator"}))
	require.True(t, CanAdminApprove(Actor{Role: "Manager"}))
	require.False(t, CanAdminApprove(Actor{Role: "Accountant"}))
}

func TestFinanceCapabilityMatchingRules(t *testing.T) {
	cases := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"role contains finance", Actor{Role: "Finance Officer"}, true},
		{"role contains finance lowercase", Actor{Role: "head of finance"}, true},
		{"exact Finance permission", Actor{Role: "Clerk", Permissions: []string{"Finance"}}, true},
		{"Finance Management permission", Actor{Role: "Clerk", Permissions: []string{"Finance Management"}}, true},
		{"Finance Approval permission", Actor{Role: "Clerk", Permissions: []string{"Finance Approval"}}, true},
		{"namespaced finance permission", Actor{Role: "Clerk", Permissions: []string{"Finance:Disburse"}}, true},
		{"padded permission", Actor{Role: "Clerk", Permissions: []string{"  Finance  "}}, true},
		{"unrelated permission", Actor{Role: "Clerk", Permissions: []string{"Inventory"}}, false},
		{"no permissions", Actor{Role: "Clerk"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HasFinanceCapability(tc.actor))
		})
	}
}

func TestRequireAllPermissions(t *testing.T) {
	actor := Actor{Role: "Accountant", Permissions: []string{"Finance", "Reports"}}

	require.True(t, HasCapability(actor, Capability{Permissions: []string{"Finance", "Reports"}, RequireAll: true}))
	require.False(t, HasCapability(actor, Capability{Permissions: []string{"Finance", "Payroll"}, RequireAll: true}))
	require.True(t, HasCapability(actor, Capability{Permissions: []string{"Payroll", "Reports"}}))
}
