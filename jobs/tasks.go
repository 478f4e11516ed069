package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockAlert is emitted when a discharge leaves a medical
	// below its minimum quantity.
	TaskTypeLowStockAlert = "stock:low_stock_alert"
	// TaskTypeExpiringLotScan is the nightly scan for lots close to expiry.
	TaskTypeExpiringLotScan = "stock:expiring_lot_scan"
)

// LowStockAlertPayload describes the medical that fell under its threshold.
type LowStockAlertPayload struct {
	MedicalCode   int     `json:"medical_code"`
	Description   string  `json:"description"`
	TotalQuantity float64 `json:"total_quantity"`
	MinQty        float64 `json:"min_qty"`
}

// NewLowStockAlertTask constructs an Asynq task.
func NewLowStockAlertTask(payload LowStockAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockAlert, data), nil
}

// NewExpiringLotScanTask constructs the scan task. It carries no payload; the
// horizon is worker configuration.
func NewExpiringLotScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpiringLotScan, nil)
}
