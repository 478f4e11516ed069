package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aegle-his/aegle/internal/stock"
)

// Enqueuer bridges stock events into background tasks.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewEnqueuer constructs Enqueuer.
func NewEnqueuer(client *asynq.Client, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

// HandleLowStock enqueues a low-stock alert task.
func (e *Enqueuer) HandleLowStock(ctx context.Context, evt stock.LowStockEvent) error {
	task, err := NewLowStockAlertTask(LowStockAlertPayload{
		MedicalCode:   evt.MedicalCode,
		Description:   evt.Description,
		TotalQuantity: evt.TotalQuantity,
		MinQty:        evt.MinQty,
	})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		e.logger.Error("enqueue low stock alert", slog.Int("medical", evt.MedicalCode), slog.Any("error", err))
		return err
	}
	return nil
}
