package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		ok     bool
	}{
		{"whole", "100", true},
		{"one decimal place", "10.5", true},
		{"two decimal places", "10.50", true},
		{"smallest unit", "0.01", true},
		{"zero", "0", false},
		{"negative", "-5.00", false},
		{"three decimal places", "10.505", false},
		{"sub-cent", "0.001", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tc.amount))
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidAmount)
			}
		})
	}
}
