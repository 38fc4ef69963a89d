package ataix

import (
	"strings"

	"ataix-trade-bot-go/internal/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// simulator backs the dry-run mode: deterministic synthetic balance and
// quotes, and an in-process order map so status and cancel calls stay
// self-consistent within one run. Nothing here touches the network.
type simulator struct {
	balance decimal.Decimal
	bid     decimal.Decimal
	ask     decimal.Decimal
	orders  map[string]string
}

func newSimulator(cfg *config.Simulation, logger *zap.Logger) *simulator {
	parse := func(raw, fallback, name string) decimal.Decimal {
		if raw == "" {
			raw = fallback
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			logger.Warn("Invalid simulation value, using default",
				zap.String("setting", name), zap.String("value", raw))
			value, _ = decimal.NewFromString(fallback)
		}
		return value
	}
	return &simulator{
		balance: parse(cfg.Balance, "1000", "balance"),
		bid:     parse(cfg.Bid, "0.5", "bid"),
		ask:     parse(cfg.Ask, "0.51", "ask"),
		orders:  make(map[string]string),
	}
}

func (s *simulator) createOrder() *OrderResponse {
	id := "dry-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.orders[id] = "NEW"
	return &OrderResponse{OrderID: id, Status: "NEW"}
}

func (s *simulator) orderStatus(orderID string) string {
	if status, ok := s.orders[orderID]; ok {
		return status
	}
	return "UNKNOWN"
}

func (s *simulator) cancelOrder(orderID string) *OrderResponse {
	status := "UNKNOWN"
	if _, ok := s.orders[orderID]; ok {
		s.orders[orderID] = "CANCELED"
		status = "CANCELED"
	}
	return &OrderResponse{OrderID: orderID, Status: status}
}

// fillOrder marks a simulated order as executed. Used by tests and demo
// runs to drive the reconciliation path without a real exchange.
func (s *simulator) fillOrder(orderID string) bool {
	if _, ok := s.orders[orderID]; !ok {
		return false
	}
	s.orders[orderID] = "FILLED"
	return true
}

// FillSimulatedOrder marks a dry-run order as FILLED so a following
// reconciliation pass exercises the linked-sell path. Returns false when the
// client is not in dry-run mode or the order is unknown.
func (c *RestClient) FillSimulatedOrder(orderID string) bool {
	if !c.dryRun {
		return false
	}
	return c.sim.fillOrder(orderID)
}
