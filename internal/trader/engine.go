package trader

import (
	"fmt"
	"strings"

	"ataix-trade-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconciler refreshes every ledger record against the exchange and closes
// out filled buys. Records are processed in insertion order; each record's
// status is polled before any linked-sell decision for it is made.
type Reconciler struct {
	markup decimal.Decimal
}

// NewReconciler creates a reconciler that prices linked sells at the given
// markup fraction above the buy price.
func NewReconciler(markup decimal.Decimal) *Reconciler {
	return &Reconciler{markup: markup}
}

// Sync polls each stored order, updates changed statuses and places one
// linked sell per newly filled buy. The linked-order reference is checked
// before creation and persisted in the same save, so a filled buy spawns at
// most one sell no matter how many times Sync runs.
func (r *Reconciler) Sync(ctx WorkflowContext) error {
	records, err := ctx.Store.Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ctx.Logger.Debug("No orders to reconcile yet")
		return nil
	}

	changed := false
	// Persist whatever already changed before surfacing a mid-run failure:
	// a sell the exchange accepted must not vanish from the ledger.
	saveDirty := func() {
		if !changed {
			return
		}
		if serr := ctx.Store.Save(records); serr != nil {
			ctx.Logger.Error("Failed to save ledger after partial reconcile", zap.Error(serr))
		}
	}

	var sells []models.OrderRecord
	for i := range records {
		entry := &records[i]
		status, err := ctx.Client.GetOrderStatus(entry.OrderID)
		if err != nil {
			records = append(records, sells...)
			saveDirty()
			return fmt.Errorf("failed to refresh order %s: %w", entry.OrderID, err)
		}
		status = strings.ToUpper(status)

		if status != entry.Status {
			ctx.Logger.Info("Order status changed",
				zap.String("order_id", entry.OrderID),
				zap.String("from", entry.Status),
				zap.String("to", status),
			)
			entry.Status = status
			changed = true
			ctx.Journal.Record(models.TradeEvent{
				Event:     models.EventStatus,
				OrderID:   entry.OrderID,
				Symbol:    entry.Symbol,
				Side:      entry.Side,
				Status:    status,
				Simulated: ctx.Cfg.Ataix.DryRun,
			})
		}

		if entry.Side == models.SideBuy && status == models.StatusFilled && entry.LinkedOrderID == "" {
			sell, err := r.placeLinkedSell(ctx, entry)
			if err != nil {
				records = append(records, sells...)
				saveDirty()
				return err
			}
			entry.LinkedOrderID = sell.OrderID
			sells = append(sells, *sell)
			changed = true
		}
	}

	if len(sells) > 0 {
		records = append(records, sells...)
	}
	if changed {
		if err := ctx.Store.Save(records); err != nil {
			return err
		}
		ctx.Logger.Info("Ledger updated with refreshed statuses",
			zap.String("file", ctx.Store.Path()))
	}
	return nil
}

// placeLinkedSell places the markup sell that closes out a filled buy and
// returns its ledger record, back-linked to the buy.
func (r *Reconciler) placeLinkedSell(ctx WorkflowContext, buy *models.OrderRecord) (*models.OrderRecord, error) {
	buyPrice, err := decimal.NewFromString(buy.Price)
	if err != nil {
		return nil, fmt.Errorf("order %s has unreadable price %q: %w", buy.OrderID, buy.Price, err)
	}
	amount, err := decimal.NewFromString(buy.Amount)
	if err != nil {
		return nil, fmt.Errorf("order %s has unreadable amount %q: %w", buy.OrderID, buy.Amount, err)
	}

	sellPrice := markupPrice(buyPrice, r.markup)
	resp, err := ctx.Client.CreateLimitOrder(buy.Symbol, models.SideSell, amount, sellPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to place linked sell for buy %s: %w", buy.OrderID, err)
	}

	percent := r.markup.Mul(decimal.NewFromInt(100))
	record := newOrderRecord(resp, buy.Symbol, models.SideSell, amount, sellPrice,
		fmt.Sprintf("Sell order +%s%% over buy %s", percent, buy.OrderID), buy.OrderID)

	ctx.Logger.Info("Created linked sell order",
		zap.String("order_id", record.OrderID),
		zap.String("buy_order_id", buy.OrderID),
		zap.String("price", record.Price),
	)
	ctx.Journal.Record(models.TradeEvent{
		Event:     models.EventLinkedSell,
		OrderID:   record.OrderID,
		Symbol:    record.Symbol,
		Side:      record.Side,
		Amount:    record.Amount,
		Price:     record.Price,
		Status:    record.Status,
		Simulated: ctx.Cfg.Ataix.DryRun,
	})
	return &record, nil
}
