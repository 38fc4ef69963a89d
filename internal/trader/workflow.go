package trader

import (
	"fmt"
	"strings"
	"time"

	"ataix-trade-bot-go/internal/ataix"
	"ataix-trade-bot-go/internal/config"
	"ataix-trade-bot-go/internal/journal"
	"ataix-trade-bot-go/internal/ledger"
	"ataix-trade-bot-go/internal/models"
	"ataix-trade-bot-go/internal/numeric"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WorkflowContext provides a workflow with access to the core components.
type WorkflowContext struct {
	Logger  *zap.Logger
	Cfg     *config.Config
	Client  ataix.ClientInterface
	Store   *ledger.Store
	Journal *journal.Journal
}

// Workflow is one operating mode of the engine.
type Workflow interface {
	// Name returns the unique name of the workflow.
	Name() string

	// Run executes the workflow until it completes or fails.
	Run(ctx WorkflowContext) error
}

// discountPrice returns the reference price lowered by the discount
// fraction, at tick granularity.
func discountPrice(reference, discount decimal.Decimal) decimal.Decimal {
	return numeric.Quantize(reference.Mul(decimal.NewFromInt(1).Sub(discount)))
}

// markupPrice returns the reference price raised by the markup fraction, at
// tick granularity.
func markupPrice(reference, markup decimal.Decimal) decimal.Decimal {
	return numeric.Quantize(reference.Mul(decimal.NewFromInt(1).Add(markup)))
}

// isoNow returns the current UTC time at second precision.
func isoNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

func parseDecimals(values []string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(values))
	for _, raw := range values {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %q: %w", raw, err)
		}
		out = append(out, value)
	}
	return out, nil
}

// newOrderRecord builds the ledger row for a confirmed placement.
func newOrderRecord(resp *ataix.OrderResponse, symbol, side string, amount, price decimal.Decimal, note, linkedID string) models.OrderRecord {
	status := strings.ToUpper(resp.Status)
	if status == "" {
		status = models.StatusNew
	}
	return models.OrderRecord{
		OrderID:       resp.OrderID,
		Symbol:        symbol,
		Side:          side,
		Amount:        numeric.Fixed(amount),
		Price:         numeric.Fixed(price),
		Status:        status,
		CreatedAt:     isoNow(),
		Note:          note,
		LinkedOrderID: linkedID,
	}
}

// placeBuyOrders places one buy per discount below the reference price.
// Orders confirmed before a failure are still returned so the caller can
// persist them; the ledger must never miss an order the exchange accepted.
func placeBuyOrders(ctx WorkflowContext, symbol string, amount, reference decimal.Decimal, discounts []decimal.Decimal) ([]models.OrderRecord, error) {
	var records []models.OrderRecord
	for _, discount := range discounts {
		target := discountPrice(reference, discount)
		resp, err := ctx.Client.CreateLimitOrder(symbol, models.SideBuy, amount, target)
		if err != nil {
			return records, fmt.Errorf("failed to place buy order at %s: %w", numeric.Fixed(target), err)
		}

		percent := discount.Mul(decimal.NewFromInt(100))
		record := newOrderRecord(resp, symbol, models.SideBuy, amount, target,
			fmt.Sprintf("Buy order %s%% below best bid", percent), "")
		records = append(records, record)

		ctx.Logger.Info("Created buy order",
			zap.String("order_id", record.OrderID),
			zap.String("price", record.Price),
			zap.String("discount", percent.String()+"%"),
		)
		ctx.Journal.Record(models.TradeEvent{
			Event:     models.EventPlaced,
			OrderID:   record.OrderID,
			Symbol:    record.Symbol,
			Side:      record.Side,
			Amount:    record.Amount,
			Price:     record.Price,
			Status:    record.Status,
			Simulated: ctx.Cfg.Ataix.DryRun,
		})
	}
	return records, nil
}

// appendRecords loads the ledger, appends the new records and saves the
// whole sequence back.
func appendRecords(ctx WorkflowContext, records []models.OrderRecord) error {
	if len(records) == 0 {
		return nil
	}
	orders, err := ctx.Store.Load()
	if err != nil {
		return err
	}
	orders = append(orders, records...)
	return ctx.Store.Save(orders)
}
