package trader

import (
	"errors"
	"path/filepath"
	"testing"

	"ataix-trade-bot-go/internal/ataix"
	"ataix-trade-bot-go/internal/config"
	"ataix-trade-bot-go/internal/journal"
	"ataix-trade-bot-go/internal/ledger"
	"ataix-trade-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockClient is a mock implementation of the ataix.ClientInterface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetAvailableBalance(currency string) (decimal.Decimal, error) {
	args := m.Called(currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockClient) GetHighestBid(symbol string) (decimal.Decimal, error) {
	args := m.Called(symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockClient) GetLowestAsk(symbol string) (decimal.Decimal, error) {
	args := m.Called(symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockClient) CreateLimitOrder(symbol, side string, amount, price decimal.Decimal) (*ataix.OrderResponse, error) {
	args := m.Called(symbol, side, amount, price)
	return args.Get(0).(*ataix.OrderResponse), args.Error(1)
}

func (m *MockClient) GetOrderStatus(orderID string) (string, error) {
	args := m.Called(orderID)
	return args.String(0), args.Error(1)
}

func (m *MockClient) CancelOrder(orderID string) (*ataix.OrderResponse, error) {
	args := m.Called(orderID)
	return args.Get(0).(*ataix.OrderResponse), args.Error(1)
}

func testTradingConfig() config.Trading {
	return config.Trading{
		Symbol:        "LTCUSDT",
		QuoteCurrency: "USDT",
		Amount:        "10",
		MaxPrice:      "0.6",
		BuyDiscounts:  []string{"0.02", "0.05", "0.08"},
		MenuDiscounts: []string{"0.02", "0.04", "0.06"},
		SellMarkup:    "0.02",
	}
}

// setupTest creates a workflow context with a mock client and a fresh
// ledger file in a temp directory.
func setupTest(t *testing.T) (WorkflowContext, *MockClient) {
	t.Helper()
	mockClient := new(MockClient)
	trading := testTradingConfig()
	ctx := WorkflowContext{
		Logger: zap.NewNop(),
		Cfg:    &config.Config{Trading: trading},
		Client: mockClient,
		Store:  ledger.NewStore(filepath.Join(t.TempDir(), "orders.json")),
	}
	return ctx, mockClient
}

func decEq(want string) any {
	target := decimal.RequireFromString(want)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(target) })
}

func TestAutoWorkflow_LadderScenario(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	jnl, err := journal.Open("file::memory:", zap.NewNop())
	assert.NoError(t, err)
	ctx.Journal = jnl

	workflow, err := NewAutoWorkflow(&ctx.Cfg.Trading)
	assert.NoError(t, err)

	mockClient.On("GetAvailableBalance", "USDT").Return(decimal.NewFromInt(1000), nil)
	mockClient.On("GetHighestBid", "LTCUSDT").Return(decimal.RequireFromString("0.5"), nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideBuy, decEq("10"), decEq("0.49")).
		Return(&ataix.OrderResponse{OrderID: "buy-1", Status: "NEW"}, nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideBuy, decEq("10"), decEq("0.475")).
		Return(&ataix.OrderResponse{OrderID: "buy-2", Status: "NEW"}, nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideBuy, decEq("10"), decEq("0.46")).
		Return(&ataix.OrderResponse{OrderID: "buy-3", Status: "NEW"}, nil)
	mockClient.On("GetOrderStatus", mock.Anything).Return("NEW", nil)

	// Act
	err = workflow.Run(ctx)

	// Assert
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)

	records, err := ctx.Store.Load()
	assert.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "0.49000000", records[0].Price)
	assert.Equal(t, "0.47500000", records[1].Price)
	assert.Equal(t, "0.46000000", records[2].Price)
	for _, record := range records {
		assert.Equal(t, models.SideBuy, record.Side)
		assert.Equal(t, models.StatusNew, record.Status)
		assert.Equal(t, "10.00000000", record.Amount)
		assert.NotEmpty(t, record.CreatedAt)
	}

	events, err := jnl.Recent(10)
	assert.NoError(t, err)
	placed := 0
	for _, event := range events {
		if event.Event == models.EventPlaced {
			placed++
		}
	}
	assert.Equal(t, 3, placed)
}

func TestAutoWorkflow_PriceConstraintAbortsBeforePlacing(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	workflow, err := NewAutoWorkflow(&ctx.Cfg.Trading)
	assert.NoError(t, err)

	mockClient.On("GetAvailableBalance", "USDT").Return(decimal.NewFromInt(1000), nil)
	mockClient.On("GetHighestBid", "LTCUSDT").Return(decimal.RequireFromString("0.62"), nil)

	// Act
	err = workflow.Run(ctx)

	// Assert
	assert.Error(t, err)
	var constraint *PriceConstraintError
	assert.ErrorAs(t, err, &constraint)
	assert.Equal(t, "LTCUSDT", constraint.Symbol)
	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "CreateLimitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	records, err := ctx.Store.Load()
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestAutoWorkflow_InsufficientFunds(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	workflow, err := NewAutoWorkflow(&ctx.Cfg.Trading)
	assert.NoError(t, err)

	// The ladder needs 4.9 + 4.75 + 4.6 = 14.25 quote units.
	mockClient.On("GetAvailableBalance", "USDT").Return(decimal.NewFromInt(14), nil)
	mockClient.On("GetHighestBid", "LTCUSDT").Return(decimal.RequireFromString("0.5"), nil)

	// Act
	err = workflow.Run(ctx)

	// Assert
	var funds *InsufficientFundsError
	assert.ErrorAs(t, err, &funds)
	assert.True(t, funds.Required.Equal(decimal.RequireFromString("14.25")), "got %s", funds.Required)
	mockClient.AssertNotCalled(t, "CreateLimitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoWorkflow_RequiresAmount(t *testing.T) {
	trading := testTradingConfig()
	trading.Amount = ""

	_, err := NewAutoWorkflow(&trading)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "trading.amount")
}

func TestAutoWorkflow_PartialLadderIsStillPersisted(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	workflow, err := NewAutoWorkflow(&ctx.Cfg.Trading)
	assert.NoError(t, err)

	mockClient.On("GetAvailableBalance", "USDT").Return(decimal.NewFromInt(1000), nil)
	mockClient.On("GetHighestBid", "LTCUSDT").Return(decimal.RequireFromString("0.5"), nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideBuy, decEq("10"), decEq("0.49")).
		Return(&ataix.OrderResponse{OrderID: "buy-1", Status: "NEW"}, nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideBuy, decEq("10"), decEq("0.475")).
		Return(&ataix.OrderResponse{}, errors.New("connection reset"))

	// Act
	err = workflow.Run(ctx)

	// Assert: the run fails, but the order the exchange accepted is local.
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	records, lerr := ctx.Store.Load()
	assert.NoError(t, lerr)
	assert.Len(t, records, 1)
	assert.Equal(t, "buy-1", records[0].OrderID)
}
