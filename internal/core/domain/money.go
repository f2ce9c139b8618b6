package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of decimal places money is stored with.
// Amounts are fixed-point, scale 2: 10.50 is fine, 10.505 is not.
const AmountScale = 2

// ValidateAmount rejects amounts the ledger cannot represent:
// zero, negative values, or more than two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -AmountScale {
		return ErrInvalidAmount
	}
	return nil
}
