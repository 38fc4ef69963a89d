package models

// Order sides as the exchange spells them in request bodies.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order lifecycle statuses. FILLED, CANCELED and REJECTED are terminal;
// UNKNOWN means the last poll could not be interpreted and the order must be
// polled again on the next run.
const (
	StatusNew      = "NEW"
	StatusFilled   = "FILLED"
	StatusCanceled = "CANCELED"
	StatusRejected = "REJECTED"
	StatusUnknown  = "UNKNOWN"
)

// OrderRecord is one row of the local order ledger. Amount and price are
// stored as fixed-precision strings so the file round-trips exactly.
type OrderRecord struct {
	OrderID       string `json:"order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Amount        string `json:"amount"`
	Price         string `json:"price"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	Note          string `json:"note,omitempty"`
	LinkedOrderID string `json:"linked_order_id,omitempty"`
}

// IsTerminal reports whether the record's status can no longer change.
func (r *OrderRecord) IsTerminal() bool {
	switch r.Status {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	}
	return false
}
