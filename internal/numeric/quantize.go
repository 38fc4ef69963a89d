package numeric

import "github.com/shopspring/decimal"

// TickPlaces is the number of fractional digits the exchange accepts for
// both prices and amounts.
const TickPlaces int32 = 8

// Quantize returns the largest multiple of the exchange tick that does not
// exceed value. Truncation, not rounding: two independently computed values
// that are mathematically equal stay representationally equal.
func Quantize(value decimal.Decimal) decimal.Decimal {
	return value.Truncate(TickPlaces)
}

// Fixed renders value at full tick precision ("0.49000000"). This is the
// canonical encoding used in the ledger file and in request bodies.
func Fixed(value decimal.Decimal) string {
	return Quantize(value).StringFixed(TickPlaces)
}
