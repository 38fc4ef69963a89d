package journal

import (
	"fmt"

	"ataix-trade-bot-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Journal is an append-only sqlite log of engine events, kept for reporting.
// The JSON ledger stays the authoritative order store; losing the journal
// loses history, not state.
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the sqlite journal and migrates its schema.
func Open(dsn string, logger *zap.Logger) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.AutoMigrate(&models.TradeEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Record appends one event. A nil journal is a no-op, so the engine can run
// journal-less. Journal failures are logged and swallowed: reporting must
// never abort a trading run.
func (j *Journal) Record(event models.TradeEvent) {
	if j == nil {
		return
	}
	if err := j.db.Create(&event).Error; err != nil {
		j.logger.Error("Failed to record journal event",
			zap.String("event", event.Event),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// Recent returns the newest events, most recent first.
func (j *Journal) Recent(limit int) ([]models.TradeEvent, error) {
	if j == nil {
		return nil, nil
	}
	var events []models.TradeEvent
	if err := j.db.Order("id desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return events, nil
}
