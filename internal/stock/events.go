package stock

import (
	"context"
	"time"
)

// LowStockEvent signals that a committed discharge left a medical below its
// minimum quantity.
type LowStockEvent struct {
	MedicalCode   int
	Description   string
	TotalQuantity float64
	MinQty        float64
	OccurredAt    time.Time
}

// IntegrationHandler receives stock events after the owning transaction has
// committed.
type IntegrationHandler interface {
	HandleLowStock(ctx context.Context, evt LowStockEvent) error
}
