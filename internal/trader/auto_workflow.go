package trader

import (
	"errors"
	"fmt"
	"strings"

	"ataix-trade-bot-go/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AutoWorkflow is the scripted mode: check funds, check the price
// constraint, place a ladder of discounted buys and reconcile. Any error
// aborts the run.
type AutoWorkflow struct {
	symbol     string
	quote      string
	amount     decimal.Decimal
	maxPrice   decimal.Decimal
	discounts  []decimal.Decimal
	reconciler *Reconciler
}

// NewAutoWorkflow builds the scripted workflow from the trading
// configuration. The amount is mandatory in this mode.
func NewAutoWorkflow(cfg *config.Trading) (*AutoWorkflow, error) {
	if strings.TrimSpace(cfg.Amount) == "" {
		return nil, errors.New("auto mode requires trading.amount")
	}
	amount, err := decimal.NewFromString(cfg.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid trading.amount %q: %w", cfg.Amount, err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("trading.amount must be positive, got %s", amount)
	}
	maxPrice, err := decimal.NewFromString(cfg.MaxPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid trading.max_price %q: %w", cfg.MaxPrice, err)
	}
	discounts, err := parseDecimals(cfg.BuyDiscounts)
	if err != nil {
		return nil, fmt.Errorf("invalid trading.buy_discounts: %w", err)
	}
	markup, err := decimal.NewFromString(cfg.SellMarkup)
	if err != nil {
		return nil, fmt.Errorf("invalid trading.sell_markup %q: %w", cfg.SellMarkup, err)
	}

	return &AutoWorkflow{
		symbol:     strings.ToUpper(cfg.Symbol),
		quote:      strings.ToUpper(cfg.QuoteCurrency),
		amount:     amount,
		maxPrice:   maxPrice,
		discounts:  discounts,
		reconciler: NewReconciler(markup),
	}, nil
}

func (w *AutoWorkflow) Name() string {
	return "Auto"
}

func (w *AutoWorkflow) Run(ctx WorkflowContext) error {
	l := ctx.Logger.With(zap.String("workflow", w.Name()), zap.String("symbol", w.symbol))

	available, err := ctx.Client.GetAvailableBalance(w.quote)
	if err != nil {
		return err
	}
	l.Info("Available balance", zap.String("currency", w.quote), zap.String("amount", available.String()))

	bestBid, err := ctx.Client.GetHighestBid(w.symbol)
	if err != nil {
		return err
	}
	l.Info("Highest bid", zap.String("price", bestBid.String()))

	// Both preconditions are checked before any order is placed, so a
	// rejected run leaves the ledger untouched.
	if bestBid.GreaterThanOrEqual(w.maxPrice) {
		return &PriceConstraintError{Symbol: w.symbol, Price: bestBid, Limit: w.maxPrice}
	}

	required := decimal.Zero
	for _, discount := range w.discounts {
		required = required.Add(discountPrice(bestBid, discount).Mul(w.amount))
	}
	if available.LessThan(required) {
		return &InsufficientFundsError{Currency: w.quote, Available: available, Required: required}
	}

	records, placeErr := placeBuyOrders(ctx, w.symbol, w.amount, bestBid, w.discounts)
	if err := appendRecords(ctx, records); err != nil {
		return err
	}
	if placeErr != nil {
		return placeErr
	}
	if len(records) > 0 {
		l.Info("Stored buy orders", zap.Int("count", len(records)), zap.String("file", ctx.Store.Path()))
	}

	return w.reconciler.Sync(ctx)
}
