package approvals

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want Stage
	}{
		{"new request", Request{Status: StatusPending}, StagePendingAdmin},
		{"admin approved", Request{Status: StatusPendingFinance, AdminApproved: true}, StagePendingFinance},
		{"finance approved", Request{Status: StatusApproved, AdminApproved: true, FinanceApproved: true}, StageApproved},
		{"finance flag without status", Request{FinanceApproved: true}, StageApproved},
		{"approved status without flags", Request{Status: StatusApproved}, StageApproved},
		{"rejected", Request{Status: StatusRejected}, StageRejected},
		{"rejected wins over finance flag", Request{Status: StatusRejected, AdminApproved: true, FinanceApproved: true}, StageRejected},
		{"rejected wins over admin flag", Request{Status: StatusRejected, AdminApproved: true}, StageRejected},
		{"admin flag alone", Request{AdminApproved: true}, StagePendingFinance},
		{"empty request", Request{}, StagePendingAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Derive(tc.req))
		})
	}
}
