package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type recordingGateway struct {
	sent []string
}

func (g *recordingGateway) Send(_ context.Context, to, text string) error {
	g.sent = append(g.sent, to+": "+text)
	return nil
}

func lowStockTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewLowStockAlertTask(LowStockAlertPayload{
		MedicalCode:   1,
		Description:   "Paracetamol 500mg",
		TotalQuantity: 3,
		MinQty:        20,
	})
	require.NoError(t, err)
	return task
}

func newAlertFixture(t *testing.T, gateway SMSGateway, recipients []string) (*AlertHandler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAlertHandler(client, gateway, recipients, time.Hour, logger), mr
}

func TestHandleLowStockAlertSendsToRecipients(t *testing.T) {
	gateway := &recordingGateway{}
	handler, _ := newAlertFixture(t, gateway, []string{"+250700000001", "+250700000002"})

	require.NoError(t, handler.HandleLowStockAlert(context.Background(), lowStockTask(t)))
	require.Len(t, gateway.sent, 2)
	require.Contains(t, gateway.sent[0], "Paracetamol 500mg")
}

func TestHandleLowStockAlertDeduplicates(t *testing.T) {
	gateway := &recordingGateway{}
	handler, _ := newAlertFixture(t, gateway, []string{"+250700000001"})
	ctx := context.Background()

	require.NoError(t, handler.HandleLowStockAlert(ctx, lowStockTask(t)))
	require.NoError(t, handler.HandleLowStockAlert(ctx, lowStockTask(t)))
	require.Len(t, gateway.sent, 1)
}

func TestHandleLowStockAlertDedupWindowExpires(t *testing.T) {
	gateway := &recordingGateway{}
	handler, mr := newAlertFixture(t, gateway, []string{"+250700000001"})
	ctx := context.Background()

	require.NoError(t, handler.HandleLowStockAlert(ctx, lowStockTask(t)))
	mr.FastForward(2 * time.Hour)
	require.NoError(t, handler.HandleLowStockAlert(ctx, lowStockTask(t)))
	require.Len(t, gateway.sent, 2)
}

func TestHandleLowStockAlertWithoutGateway(t *testing.T) {
	handler, mr := newAlertFixture(t, nil, nil)

	require.NoError(t, handler.HandleLowStockAlert(context.Background(), lowStockTask(t)))
	require.True(t, mr.Exists("stock:lowstock:1"))
}

func TestHandleLowStockAlertBadPayload(t *testing.T) {
	handler, _ := newAlertFixture(t, nil, nil)
	task := asynq.NewTask(TaskTypeLowStockAlert, []byte("{not json"))

	err := handler.HandleLowStockAlert(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockAlertTaskPayload(t *testing.T) {
	task := lowStockTask(t)
	require.Equal(t, TaskTypeLowStockAlert, task.Type())

	var payload LowStockAlertPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 1, payload.MedicalCode)
	require.InDelta(t, 20.0, payload.MinQty, 0.0001)
}
