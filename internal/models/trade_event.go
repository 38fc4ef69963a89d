package models

import "gorm.io/gorm"

// Journal event kinds.
const (
	EventPlaced     = "PLACED"
	EventStatus     = "STATUS"
	EventLinkedSell = "LINKED_SELL"
	EventCanceled   = "CANCELED"
)

// TradeEvent is one row of the sqlite event journal. The journal is derived
// reporting data; the JSON ledger remains the authoritative order store.
type TradeEvent struct {
	gorm.Model
	Event     string `json:"event"`
	OrderID   string `json:"order_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	Simulated bool   `json:"simulated"`
}
