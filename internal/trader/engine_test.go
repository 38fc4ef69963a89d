package trader

import (
	"errors"
	"os"
	"testing"

	"ataix-trade-bot-go/internal/ataix"
	"ataix-trade-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newBuyRecord(id, price string) models.OrderRecord {
	return models.OrderRecord{
		OrderID:   id,
		Symbol:    "LTCUSDT",
		Side:      models.SideBuy,
		Amount:    "10.00000000",
		Price:     price,
		Status:    models.StatusNew,
		CreatedAt: "2024-05-01T10:00:00Z",
	}
}

func TestReconciler_FilledBuySpawnsOneLinkedSell(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	assert.NoError(t, ctx.Store.Save([]models.OrderRecord{newBuyRecord("buy-1", "0.49000000")}))
	reconciler := NewReconciler(decimal.RequireFromString("0.02"))

	mockClient.On("GetOrderStatus", "buy-1").Return(models.StatusFilled, nil)
	// 0.49 * 1.02 = 0.4998
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideSell, decEq("10"), decEq("0.4998")).
		Return(&ataix.OrderResponse{OrderID: "sell-1", Status: "NEW"}, nil)

	// Act
	err := reconciler.Sync(ctx)

	// Assert
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)

	records, err := ctx.Store.Load()
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	buy := records[0]
	assert.Equal(t, models.StatusFilled, buy.Status)
	assert.Equal(t, "sell-1", buy.LinkedOrderID)

	sell := records[1]
	assert.Equal(t, models.SideSell, sell.Side)
	assert.Equal(t, "0.49980000", sell.Price)
	assert.Equal(t, "10.00000000", sell.Amount)
	assert.Equal(t, "buy-1", sell.LinkedOrderID)
}

func TestReconciler_SecondRunDoesNotDuplicateSell(t *testing.T) {
	// Arrange: first run fills the buy and creates the sell.
	ctx, mockClient := setupTest(t)
	assert.NoError(t, ctx.Store.Save([]models.OrderRecord{newBuyRecord("buy-1", "0.49000000")}))
	reconciler := NewReconciler(decimal.RequireFromString("0.02"))

	mockClient.On("GetOrderStatus", "buy-1").Return(models.StatusFilled, nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideSell, mock.Anything, mock.Anything).
		Return(&ataix.OrderResponse{OrderID: "sell-1", Status: "NEW"}, nil).Once()
	assert.NoError(t, reconciler.Sync(ctx))

	// Second run: both orders polled again, no new placement.
	mockClient.On("GetOrderStatus", "sell-1").Return(models.StatusNew, nil)

	// Act
	err := reconciler.Sync(ctx)

	// Assert
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)

	records, err := ctx.Store.Load()
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "sell-1", records[0].LinkedOrderID)
}

func TestReconciler_NoChangeMeansNoRewrite(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	assert.NoError(t, ctx.Store.Save([]models.OrderRecord{newBuyRecord("buy-1", "0.49000000")}))
	before, err := os.ReadFile(ctx.Store.Path())
	assert.NoError(t, err)
	reconciler := NewReconciler(decimal.RequireFromString("0.02"))

	mockClient.On("GetOrderStatus", "buy-1").Return(models.StatusNew, nil)

	// Act
	assert.NoError(t, reconciler.Sync(ctx))

	// Assert: the file was not rewritten.
	after, err := os.ReadFile(ctx.Store.Path())
	assert.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconciler_UnknownStatusIsRepolled(t *testing.T) {
	// Arrange: the first run degrades the record to UNKNOWN.
	ctx, mockClient := setupTest(t)
	assert.NoError(t, ctx.Store.Save([]models.OrderRecord{newBuyRecord("buy-1", "0.49000000")}))
	reconciler := NewReconciler(decimal.RequireFromString("0.02"))

	mockClient.On("GetOrderStatus", "buy-1").Return(models.StatusUnknown, nil).Once()
	assert.NoError(t, reconciler.Sync(ctx))

	records, err := ctx.Store.Load()
	assert.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, records[0].Status)

	// Second run: UNKNOWN is not terminal, so the order is polled again and
	// can still complete its lifecycle.
	mockClient.On("GetOrderStatus", "buy-1").Return(models.StatusFilled, nil).Once()
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideSell, mock.Anything, mock.Anything).
		Return(&ataix.OrderResponse{OrderID: "sell-1", Status: "NEW"}, nil)

	// Act
	assert.NoError(t, reconciler.Sync(ctx))

	// Assert
	mockClient.AssertExpectations(t)
	records, err = ctx.Store.Load()
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, models.StatusFilled, records[0].Status)
}

func TestReconciler_PollErrorPropagates(t *testing.T) {
	// Arrange
	ctx, mockClient := setupTest(t)
	assert.NoError(t, ctx.Store.Save([]models.OrderRecord{newBuyRecord("buy-1", "0.49000000")}))
	reconciler := NewReconciler(decimal.RequireFromString("0.02"))

	mockClient.On("GetOrderStatus", "buy-1").Return("", errors.New("API down"))

	// Act
	err := reconciler.Sync(ctx)

	// Assert
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API down")
}

func TestReconciler_SellPlacedBeforeFailureIsPersisted(t *testing.T) {
	// Arrange: two filled buys; the second sell placement fails.
	ctx, mockClient := setupTest(t)
	assert.NoError(t, ctx.Store.Save([]models.OrderRecord{
		newBuyRecord("buy-1", "0.49000000"),
		newBuyRecord("buy-2", "0.47500000"),
	}))
	reconciler := NewReconciler(decimal.RequireFromString("0.02"))

	mockClient.On("GetOrderStatus", "buy-1").Return(models.StatusFilled, nil)
	mockClient.On("GetOrderStatus", "buy-2").Return(models.StatusFilled, nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideSell, decEq("10"), decEq("0.4998")).
		Return(&ataix.OrderResponse{OrderID: "sell-1", Status: "NEW"}, nil)
	mockClient.On("CreateLimitOrder", "LTCUSDT", models.SideSell, decEq("10"), decEq("0.4845")).
		Return(&ataix.OrderResponse{}, errors.New("connection reset"))

	// Act
	err := reconciler.Sync(ctx)

	// Assert: the error surfaces, but the accepted sell is in the ledger.
	assert.Error(t, err)
	records, lerr := ctx.Store.Load()
	assert.NoError(t, lerr)
	assert.Len(t, records, 3)
	assert.Equal(t, "sell-1", records[0].LinkedOrderID)
	assert.Empty(t, records[1].LinkedOrderID)
}
