package domain_test

import (
	"testing"

	"github.com/smallbiznis/communa/internal/connectedaccount/domain"
	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		charges  bool
		payouts  bool
		reqs     domain.Requirements
		expected string
	}{
		{
			name:     "charges disabled",
			charges:  false,
			payouts:  true,
			expected: domain.StatusPending,
		},
		{
			name:     "payouts disabled",
			charges:  true,
			payouts:  false,
			expected: domain.StatusPending,
		},
		{
			name:     "both disabled with outstanding requirements",
			charges:  false,
			payouts:  false,
			reqs:     domain.Requirements{CurrentlyDue: []string{"external_account"}},
			expected: domain.StatusPending,
		},
		{
			name:     "enabled with currently due",
			charges:  true,
			payouts:  true,
			reqs:     domain.Requirements{CurrentlyDue: []string{"individual.id_number"}},
			expected: domain.StatusRestricted,
		},
		{
			name:     "enabled with past due",
			charges:  true,
			payouts:  true,
			reqs:     domain.Requirements{PastDue: []string{"individual.verification.document"}},
			expected: domain.StatusRestricted,
		},
		{
			name:     "eventually due alone does not restrict",
			charges:  true,
			payouts:  true,
			reqs:     domain.Requirements{EventuallyDue: []string{"individual.dob"}},
			expected: domain.StatusVerified,
		},
		{
			name:     "fully verified",
			charges:  true,
			payouts:  true,
			expected: domain.StatusVerified,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, domain.DeriveStatus(tc.charges, tc.payouts, tc.reqs))
		})
	}
}
