package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of fractional digits every stored amount carries.
const MoneyPlaces = 2

// ValidAmount reports whether d is positive and has at most two decimal places.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(MoneyPlaces))
}
