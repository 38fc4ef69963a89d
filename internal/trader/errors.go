package trader

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientFundsError means the quote balance cannot cover the planned
// ladder. Raised before any order is placed, so it is side-effect free.
type InsufficientFundsError struct {
	Currency  string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("not enough %s balance (%s) to cover %s required",
		e.Currency, e.Available, e.Required)
}

// PriceConstraintError means the market price breaches the configured
// maximum. Raised before any order is placed, so it is side-effect free.
type PriceConstraintError struct {
	Symbol string
	Price  decimal.Decimal
	Limit  decimal.Decimal
}

func (e *PriceConstraintError) Error() string {
	return fmt.Sprintf("price %s for %s exceeds the %s limit",
		e.Price, e.Symbol, e.Limit)
}
