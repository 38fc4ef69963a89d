package ataix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ataix-trade-bot-go/internal/config"
	"ataix-trade-bot-go/internal/numeric"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const OrderTypeLimit = "limit"

// Candidate orders for the request-shape negotiation. An override from the
// configuration is tried first; these are the fallbacks.
var (
	symbolFormatFallback = []string{"dash", "slash", "upper", "lower"}
	sizeFieldFallback    = []string{"quantity", "amount", "volume"}
)

var (
	balanceKeys = []string{"available", "balance", "amount"}
	bidKeys     = []string{"bid", "buy", "highestBid"}
	askKeys     = []string{"ask", "sell", "lowestAsk"}
	orderIDKeys = []string{"orderId", "orderID", "id", "order_id"}
	statusKeys  = []string{"orderStatus", "status", "state"}
)

// ClientInterface defines the interface for the ATAIX REST API client.
type ClientInterface interface {
	GetAvailableBalance(currency string) (decimal.Decimal, error)
	GetHighestBid(symbol string) (decimal.Decimal, error)
	GetLowestAsk(symbol string) (decimal.Decimal, error)
	CreateLimitOrder(symbol, side string, amount, price decimal.Decimal) (*OrderResponse, error)
	GetOrderStatus(orderID string) (string, error)
	CancelOrder(orderID string) (*OrderResponse, error)
}

// OrderResponse is the interpreted result of a create or cancel call.
type OrderResponse struct {
	OrderID string
	Status  string
}

// symbolInfo caches how the exchange spelled a pair in its price feed, so a
// later order for the same pair can be formatted the way the deployment
// expects. Process-lifetime only.
type symbolInfo struct {
	Base  string
	Quote string
	Raw   string
}

// RestClient is a client for the ATAIX REST API.
// It implements the ClientInterface.
type RestClient struct {
	client        *resty.Client
	logger        *zap.Logger
	limiter       *rate.Limiter
	symbolFormats []string
	sizeFields    []string
	symbolCache   map[string]symbolInfo

	dryRun bool
	sim    *simulator
}

// ensure RestClient implements the interface
var _ ClientInterface = (*RestClient)(nil)

// NewRestClient creates a new ATAIX REST API client.
func NewRestClient(cfg *config.Ataix, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.ApiKey != "" {
		client.SetHeader("X-API-KEY", cfg.ApiKey)
	}
	if cfg.ApiSecret != "" {
		client.SetHeader("X-API-SECRET", cfg.ApiSecret)
	}

	if cfg.DryRun {
		logger.Warn("Dry run enabled: no requests will reach ATAIX")
	}

	return &RestClient{
		client:        client,
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		symbolFormats: symbolFormatCandidates(cfg.SymbolFormat),
		sizeFields:    sizeFieldCandidates(cfg.OrderSizeField),
		symbolCache:   make(map[string]symbolInfo),
		dryRun:        cfg.DryRun,
		sim:           newSimulator(&cfg.Simulation, logger),
	}
}

// symbolFormatCandidates seeds the negotiation's symbol-format list: the
// override first, then the fixed fallback order, deduplicated. Unknown
// format names are dropped.
func symbolFormatCandidates(override string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(candidate string) {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		switch candidate {
		case "dash", "slash", "upper", "lower":
		default:
			return
		}
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	add(override)
	for _, candidate := range symbolFormatFallback {
		add(candidate)
	}
	return out
}

// sizeFieldCandidates seeds the size-field list the same way. Any non-empty
// override is allowed since field names are deployment-defined.
func sizeFieldCandidates(override string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	add(override)
	for _, candidate := range sizeFieldFallback {
		add(candidate)
	}
	return out
}

// GetAvailableBalance returns the available balance of the given currency.
func (c *RestClient) GetAvailableBalance(currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if c.dryRun {
		return c.sim.balance, nil
	}

	payload, err := c.request("GET", "/user/balances/"+currency, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to get %s balance: %w", currency, err)
	}

	entry, _ := payload.(map[string]any)
	for _, key := range balanceKeys {
		if value, ok := entry[key]; ok {
			return toDecimal(value)
		}
	}
	return decimal.Decimal{}, &APIError{
		Kind:    KindOther,
		Message: fmt.Sprintf("balance payload for %s has no recognizable amount field: %v", currency, payload),
	}
}

// GetHighestBid returns the best buy price currently quoted for the symbol.
func (c *RestClient) GetHighestBid(symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	if c.dryRun {
		return c.sim.bid, nil
	}
	return c.bestPrice(symbol, bidKeys, decimal.Decimal.GreaterThan, "highest bid")
}

// GetLowestAsk returns the best sell price currently quoted for the symbol.
func (c *RestClient) GetLowestAsk(symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	if c.dryRun {
		return c.sim.ask, nil
	}
	return c.bestPrice(symbol, askKeys, decimal.Decimal.LessThan, "lowest ask")
}

// bestPrice scans the price feed entries for the symbol and keeps the best
// value under the given comparison.
func (c *RestClient) bestPrice(symbol string, keys []string, better func(decimal.Decimal, decimal.Decimal) bool, label string) (decimal.Decimal, error) {
	entries, err := c.symbolPriceEntries(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var best decimal.Decimal
	found := false
	for _, entry := range entries {
		for _, key := range keys {
			value, ok := entry[key]
			if !ok || value == nil {
				continue
			}
			price, err := toDecimal(value)
			if err != nil {
				continue
			}
			if !found || better(price, best) {
				best = price
				found = true
			}
			break
		}
	}
	if !found {
		return decimal.Decimal{}, &APIError{
			Kind:    KindOther,
			Message: fmt.Sprintf("cannot determine %s for %s", label, symbol),
		}
	}
	return best, nil
}

// symbolPriceEntries fetches the shared price feed and keeps the entries
// matching the requested pair, remembering each one's spelling in the cache.
func (c *RestClient) symbolPriceEntries(symbol string) ([]map[string]any, error) {
	target := normalizeSymbol(symbol)
	payload, err := c.request("GET", "/prices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}

	var matches []map[string]any
	for _, entry := range iterEntries(payload) {
		candidates := []string{
			getString(entry, "symbol"),
			getString(entry, "symbolCode"),
			getString(entry, "baseCurrency") + getString(entry, "quoteCurrency"),
		}
		for _, name := range candidates {
			if name != "" && normalizeSymbol(name) == target {
				matches = append(matches, entry)
				c.rememberSymbol(entry)
				break
			}
		}
	}
	return matches, nil
}

// CreateLimitOrder places a limit order, negotiating the request shape the
// deployment accepts. The accepted symbol spelling ("LTC-USDT", "LTC/USDT",
// "LTCUSDT", "ltcusdt") and the name of the size parameter ("quantity",
// "amount", "volume") vary between deployments, so placement walks the
// candidate lists: an unrecognized-parameter rejection advances the size
// field, an invalid-symbol rejection abandons the remaining fields and
// advances the format, anything else is surfaced immediately. At most
// |formats| x |fields| attempts.
func (c *RestClient) CreateLimitOrder(symbol, side string, amount, price decimal.Decimal) (*OrderResponse, error) {
	symbol = strings.ToUpper(symbol)
	side = strings.ToLower(side)
	amount = numeric.Quantize(amount)
	price = numeric.Quantize(price)

	if c.dryRun {
		return c.sim.createOrder(), nil
	}

	var lastErr error
formats:
	for fi, format := range c.symbolFormats {
		formatted := c.formatSymbol(symbol, format)
		for si, field := range c.sizeFields {
			body := map[string]string{
				"symbol": formatted,
				"side":   side,
				"type":   OrderTypeLimit,
				"price":  numeric.Fixed(price),
			}
			body[field] = numeric.Fixed(amount)

			c.logger.Debug("Placing limit order",
				zap.String("symbol", formatted),
				zap.String("side", side),
				zap.String("size_field", field),
			)
			payload, err := c.request("POST", "/orders", body)
			if err == nil {
				return orderResponseFrom(payload)
			}
			lastErr = err

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				return nil, err
			}
			switch apiErr.Kind {
			case KindUnexpectedParameter:
				if si == len(c.sizeFields)-1 {
					return nil, err
				}
				c.logger.Debug("Size field rejected, trying next candidate",
					zap.String("rejected_field", field))
			case KindInvalidSymbol:
				if fi == len(c.symbolFormats)-1 {
					return nil, err
				}
				c.logger.Debug("Symbol spelling rejected, trying next format",
					zap.String("rejected_symbol", formatted))
				continue formats
			default:
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// GetOrderStatus returns the exchange's current status for the order.
func (c *RestClient) GetOrderStatus(orderID string) (string, error) {
	if c.dryRun {
		return c.sim.orderStatus(orderID), nil
	}

	payload, err := c.request("GET", "/orders/"+orderID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get status of order %s: %w", orderID, err)
	}

	details, _ := payload.(map[string]any)
	for _, key := range statusKeys {
		if value, ok := details[key].(string); ok {
			return strings.ToUpper(value), nil
		}
	}
	return "", &APIError{
		Kind:    KindOther,
		Message: fmt.Sprintf("status payload for order %s has no recognizable status field: %v", orderID, payload),
	}
}

// CancelOrder cancels the order on the exchange.
func (c *RestClient) CancelOrder(orderID string) (*OrderResponse, error) {
	if c.dryRun {
		return c.sim.cancelOrder(orderID), nil
	}

	payload, err := c.request("DELETE", "/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}

	response := &OrderResponse{OrderID: orderID, Status: "CANCELED"}
	if details, ok := payload.(map[string]any); ok {
		if id := firstString(details, orderIDKeys); id != "" {
			response.OrderID = id
		}
		if status := getString(details, "status"); status != "" {
			response.Status = strings.ToUpper(status)
		}
	}
	return response, nil
}

// request executes one call and unwraps the ATAIX response envelope.
func (c *RestClient) request(method, path string, body any) (any, error) {
	req := c.client.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := c.doRequest(context.Background(), method, path, req)
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(resp.Body())
}

// doRequest handles the actual request execution with rate limiting and
// retry logic for transient transport failures. Application-level
// rejections are never retried here.
func (c *RestClient) doRequest(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if werr := c.limiter.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", werr)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+path))
		resp, err = req.Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, aerr := strconv.Atoi(retryAfterHeader); aerr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, c.rejectionError(resp)
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
	}
	return nil, fmt.Errorf("request failed after %d attempts with status %s", maxRetries, resp.Status())
}

// rejectionError interprets a non-retryable HTTP error response. When the
// body carries an ATAIX rejection message it is classified like any other
// rejection; otherwise a plain transport error is returned.
func (c *RestClient) rejectionError(resp *resty.Response) error {
	var body map[string]any
	if json.Unmarshal(resp.Body(), &body) == nil {
		if message, ok := body["message"].(string); ok && message != "" {
			return classifyError(message)
		}
	}
	return fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
}

// unwrapEnvelope peels the ATAIX response envelope: an object with
// "status": false is a rejection, an object with a "result" key yields
// the result, everything else passes through as-is.
func unwrapEnvelope(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("cannot parse exchange response: %w", err)
	}
	if m, ok := payload.(map[string]any); ok {
		if accepted, isBool := m["status"].(bool); isBool && !accepted {
			message, _ := m["message"].(string)
			if message == "" {
				message = fmt.Sprintf("%v", m)
			}
			return nil, classifyError(message)
		}
		if result, ok := m["result"]; ok {
			return result, nil
		}
	}
	return payload, nil
}

// rememberSymbol records how the exchange spelled a pair: explicit
// base/quote fields when present, otherwise split from the raw name.
func (c *RestClient) rememberSymbol(entry map[string]any) {
	name := getString(entry, "symbol")
	if name == "" {
		name = getString(entry, "symbolCode")
	}
	normalized := normalizeSymbol(name)
	if normalized == "" {
		return
	}

	base := getString(entry, "baseCurrency")
	if base == "" {
		base = getString(entry, "baseCurrencyCode")
	}
	quote := getString(entry, "quoteCurrency")
	if quote == "" {
		quote = getString(entry, "quoteCurrencyCode")
	}
	if base == "" || quote == "" {
		clean := strings.NewReplacer("-", "/", "_", "/").Replace(name)
		if parts := strings.Split(clean, "/"); len(parts) == 2 {
			if base == "" {
				base = parts[0]
			}
			if quote == "" {
				quote = parts[1]
			}
		}
	}
	if base == "" || quote == "" {
		// A concatenated spelling like "LTCUSDT" carries no base/quote split.
		// Never let it replace an entry that already knows the components.
		if cached, ok := c.symbolCache[normalized]; ok && cached.Base != "" && cached.Quote != "" {
			return
		}
	}

	c.symbolCache[normalized] = symbolInfo{
		Base:  strings.ToUpper(base),
		Quote: strings.ToUpper(quote),
		Raw:   name,
	}
}

// formatSymbol spells the pair per the given format candidate, using the
// cache when the pair was seen in the price feed.
func (c *RestClient) formatSymbol(symbol, format string) string {
	normalized := normalizeSymbol(symbol)
	var base, quote string
	if info, ok := c.symbolCache[normalized]; ok {
		base, quote = info.Base, info.Quote
	}
	if base == "" || quote == "" {
		// No cache entry: guess the quote as the trailing block (USDT, KZT).
		cut := len(normalized) - 4
		if cut < 0 {
			cut = 0
		}
		if quote == "" {
			quote = normalized[cut:]
		}
		if base == "" {
			base = normalized[:cut]
		}
	}

	switch format {
	case "upper":
		return base + quote
	case "lower":
		return strings.ToLower(base + quote)
	case "slash":
		return base + "/" + quote
	default: // dash
		return base + "-" + quote
	}
}

// normalizeSymbol reduces a pair spelling to uppercase alphanumerics so
// "LTC-USDT", "ltc/usdt" and "LTCUSDT" compare equal.
func normalizeSymbol(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// iterEntries flattens a price-feed payload into object entries; the feed
// is usually a list but some deployments return a single object.
func iterEntries(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		entries := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	case map[string]any:
		return []map[string]any{v}
	}
	return nil
}

// orderResponseFrom extracts the order id and status from a create
// response, tolerating the id key variants seen across deployments.
func orderResponseFrom(payload any) (*OrderResponse, error) {
	details, _ := payload.(map[string]any)
	id := firstString(details, orderIDKeys)
	if id == "" {
		return nil, &APIError{
			Kind:    KindOther,
			Message: fmt.Sprintf("order response lacks an id: %v", payload),
		}
	}
	status := getString(details, "status")
	if status == "" {
		status = "NEW"
	}
	return &OrderResponse{OrderID: id, Status: strings.ToUpper(status)}, nil
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s := getString(m, key); s != "" {
			return s
		}
	}
	return ""
}

func getString(m map[string]any, key string) string {
	switch value := m[key].(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	}
	return ""
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	return decimal.Decimal{}, fmt.Errorf("cannot interpret %v as a decimal", value)
}
