package trader

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ataix-trade-bot-go/internal/config"
	"ataix-trade-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InteractiveWorkflow is the menu mode for a single pair: place a buy a few
// percent below the best bid, cancel an order, or quit. Action failures are
// reported and the menu continues.
type InteractiveWorkflow struct {
	symbol     string
	quote      string
	discounts  []decimal.Decimal
	reconciler *Reconciler

	in  io.Reader
	out io.Writer
}

// NewInteractiveWorkflow builds the menu workflow. in and out carry the
// dialog, so tests can drive it with buffers.
func NewInteractiveWorkflow(cfg *config.Trading, in io.Reader, out io.Writer) (*InteractiveWorkflow, error) {
	discounts, err := parseDecimals(cfg.MenuDiscounts)
	if err != nil {
		return nil, fmt.Errorf("invalid trading.menu_discounts: %w", err)
	}
	if len(discounts) != 3 {
		return nil, fmt.Errorf("trading.menu_discounts must list exactly 3 discounts, got %d", len(discounts))
	}
	markup, err := decimal.NewFromString(cfg.SellMarkup)
	if err != nil {
		return nil, fmt.Errorf("invalid trading.sell_markup %q: %w", cfg.SellMarkup, err)
	}

	return &InteractiveWorkflow{
		symbol:     strings.ToUpper(cfg.Symbol),
		quote:      strings.ToUpper(cfg.QuoteCurrency),
		discounts:  discounts,
		reconciler: NewReconciler(markup),
		in:         in,
		out:        out,
	}, nil
}

func (w *InteractiveWorkflow) Name() string {
	return "Interactive"
}

func (w *InteractiveWorkflow) Run(ctx WorkflowContext) error {
	scanner := bufio.NewScanner(w.in)
	fmt.Fprintf(w.out, "Interactive mode for %s. Enter q to quit.\n", w.symbol)

	for {
		available, err := ctx.Client.GetAvailableBalance(w.quote)
		if err != nil {
			return err
		}
		bestBid, err := ctx.Client.GetHighestBid(w.symbol)
		if err != nil {
			return err
		}
		bestAsk, err := ctx.Client.GetLowestAsk(w.symbol)
		if err != nil {
			return err
		}

		fmt.Fprintf(w.out, "\n%s balance: %s | Best bid: %s | Best ask: %s\n",
			w.quote, available, bestBid, bestAsk)
		if err := w.printLocalOrders(ctx); err != nil {
			return err
		}
		fmt.Fprintf(w.out,
			"1 - Buy %s%% below best bid\n"+
				"2 - Buy %s%% below best bid\n"+
				"3 - Buy %s%% below best bid\n"+
				"4 - Cancel an order\n"+
				"5 - Show recent activity\n"+
				"q - Quit\n",
			percentOf(w.discounts[0]), percentOf(w.discounts[1]), percentOf(w.discounts[2]))

		choice, ok := prompt(scanner, w.out, "Choose an action [1-5, q]: ")
		if !ok {
			return nil
		}
		switch choice {
		case "q":
			return nil
		case "1", "2", "3":
			discount := w.discounts[int(choice[0]-'1')]
			if err := w.placeDiscountedBuy(ctx, scanner, bestBid, discount); err != nil {
				fmt.Fprintf(w.out, "Order failed: %v\n", err)
				ctx.Logger.Error("Interactive buy failed", zap.Error(err))
			}
		case "4":
			orderID, ok := prompt(scanner, w.out, "Enter the order ID to cancel: ")
			if !ok {
				return nil
			}
			if orderID == "" {
				fmt.Fprintln(w.out, "No ID entered, action aborted.")
				continue
			}
			w.cancelAndUpdate(ctx, orderID)
		case "5":
			w.printRecentEvents(ctx)
		default:
			fmt.Fprintln(w.out, "Unknown command, try again.")
		}
	}
}

// placeDiscountedBuy prompts for an amount, places the buy and persists it.
// The append and reconcile steps follow every successful placement
// unconditionally; an accepted order must never be lost locally.
func (w *InteractiveWorkflow) placeDiscountedBuy(ctx WorkflowContext, scanner *bufio.Scanner, bestBid, discount decimal.Decimal) error {
	amount, ok := w.promptAmount(scanner)
	if !ok {
		fmt.Fprintln(w.out, "Action canceled.")
		return nil
	}

	records, placeErr := placeBuyOrders(ctx, w.symbol, amount, bestBid, []decimal.Decimal{discount})
	if err := appendRecords(ctx, records); err != nil {
		return err
	}
	if placeErr != nil {
		return placeErr
	}
	for _, record := range records {
		fmt.Fprintf(w.out, "Created buy order %s at %s\n", record.OrderID, record.Price)
	}
	return w.reconciler.Sync(ctx)
}

// promptAmount asks until it gets a positive decimal. An empty line cancels.
func (w *InteractiveWorkflow) promptAmount(scanner *bufio.Scanner) (decimal.Decimal, bool) {
	for {
		raw, ok := prompt(scanner, w.out, "Enter the amount (empty to cancel): ")
		if !ok || raw == "" {
			return decimal.Decimal{}, false
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			fmt.Fprintln(w.out, "Cannot parse the number, try again.")
			continue
		}
		if value.LessThanOrEqual(decimal.Zero) {
			fmt.Fprintln(w.out, "The amount must be greater than zero.")
			continue
		}
		return value, true
	}
}

// cancelAndUpdate cancels the order remotely and mirrors the new status
// into any matching ledger record.
func (w *InteractiveWorkflow) cancelAndUpdate(ctx WorkflowContext, orderID string) {
	resp, err := ctx.Client.CancelOrder(orderID)
	if err != nil {
		fmt.Fprintf(w.out, "Failed to cancel the order: %v\n", err)
		return
	}
	status := strings.ToUpper(resp.Status)
	if status == "" {
		status = models.StatusCanceled
	}
	ctx.Journal.Record(models.TradeEvent{
		Event:     models.EventCanceled,
		OrderID:   orderID,
		Symbol:    w.symbol,
		Status:    status,
		Simulated: ctx.Cfg.Ataix.DryRun,
	})

	orders, err := ctx.Store.Load()
	if err != nil {
		fmt.Fprintf(w.out, "Order canceled on the exchange, but the ledger could not be read: %v\n", err)
		return
	}
	updated := false
	for i := range orders {
		if orders[i].OrderID == orderID {
			orders[i].Status = status
			updated = true
		}
	}
	if !updated {
		fmt.Fprintln(w.out, "Order canceled on the exchange, but it was not in the local ledger.")
		return
	}
	if err := ctx.Store.Save(orders); err != nil {
		fmt.Fprintf(w.out, "Order canceled, but the ledger could not be saved: %v\n", err)
		return
	}
	fmt.Fprintf(w.out, "Order %s status updated to %s.\n", orderID, status)
}

// printLocalOrders shows the tail of the local ledger.
func (w *InteractiveWorkflow) printLocalOrders(ctx WorkflowContext) error {
	orders, err := ctx.Store.Load()
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(w.out, "No local orders yet.")
		return nil
	}
	open := 0
	for i := range orders {
		if !orders[i].IsTerminal() {
			open++
		}
	}
	fmt.Fprintf(w.out, "Recent orders (%d open):\n", open)
	start := len(orders) - 5
	if start < 0 {
		start = 0
	}
	for _, entry := range orders[start:] {
		link := entry.LinkedOrderID
		if link == "" {
			link = "-"
		}
		fmt.Fprintf(w.out, " - %s | %s | %s | price %s | link %s\n",
			entry.OrderID, entry.Side, entry.Status, entry.Price, link)
	}
	return nil
}

// printRecentEvents shows the tail of the event journal.
func (w *InteractiveWorkflow) printRecentEvents(ctx WorkflowContext) {
	events, err := ctx.Journal.Recent(10)
	if err != nil {
		fmt.Fprintf(w.out, "Could not read the journal: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Fprintln(w.out, "No recorded activity yet.")
		return
	}
	fmt.Fprintln(w.out, "Recent activity:")
	for _, event := range events {
		fmt.Fprintf(w.out, " - %s %s %s %s\n",
			event.CreatedAt.Format("2006-01-02 15:04:05"), event.Event, event.OrderID, event.Status)
	}
}

func percentOf(discount decimal.Decimal) string {
	return discount.Mul(decimal.NewFromInt(100)).String()
}

// prompt writes the question and reads one trimmed line; ok is false when
// the input stream is exhausted.
func prompt(scanner *bufio.Scanner, out io.Writer, question string) (string, bool) {
	fmt.Fprint(out, question)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}
