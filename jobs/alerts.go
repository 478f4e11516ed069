package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// SMSGateway sends alert messages. The concrete gateway lives outside this
// service; anything that fulfils this interface can be plugged in.
type SMSGateway interface {
	Send(ctx context.Context, to, text string) error
}

// AlertHandler processes low-stock alert tasks. A redis key per medical keeps
// repeated discharges from flooding the pharmacist with duplicate messages.
type AlertHandler struct {
	redis      *redis.Client
	gateway    SMSGateway
	recipients []string
	dedupTTL   time.Duration
	logger     *slog.Logger
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(redisClient *redis.Client, gateway SMSGateway, recipients []string, dedupTTL time.Duration, logger *slog.Logger) *AlertHandler {
	if dedupTTL <= 0 {
		dedupTTL = 6 * time.Hour
	}
	return &AlertHandler{redis: redisClient, gateway: gateway, recipients: recipients, dedupTTL: dedupTTL, logger: logger}
}

// HandleLowStockAlert processes TaskTypeLowStockAlert tasks.
func (h *AlertHandler) HandleLowStockAlert(ctx context.Context, t *asynq.Task) error {
	var payload LowStockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	key := fmt.Sprintf("stock:lowstock:%d", payload.MedicalCode)
	first, err := h.redis.SetNX(ctx, key, "1", h.dedupTTL).Result()
	if err != nil {
		return err
	}
	if !first {
		// Already alerted within the dedup window.
		return nil
	}

	h.logger.Warn("low stock",
		slog.Int("medical", payload.MedicalCode),
		slog.String("description", payload.Description),
		slog.Float64("total_quantity", payload.TotalQuantity),
		slog.Float64("min_qty", payload.MinQty))

	if h.gateway == nil {
		return nil
	}
	text := fmt.Sprintf("Low stock: %s (code %d) at %.0f, minimum %.0f",
		payload.Description, payload.MedicalCode, payload.TotalQuantity, payload.MinQty)
	for _, to := range h.recipients {
		if err := h.gateway.Send(ctx, to, text); err != nil {
			h.logger.Error("send low stock sms", slog.String("to", to), slog.Any("error", err))
			return err
		}
	}
	return nil
}
