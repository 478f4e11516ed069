package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExpiryScanner reports lots that still hold stock but are close to their due
// date, so the pharmacy can discharge them before they expire.
type ExpiryScanner struct {
	pool    *pgxpool.Pool
	horizon time.Duration
	logger  *slog.Logger
}

// NewExpiryScanner constructs ExpiryScanner.
func NewExpiryScanner(pool *pgxpool.Pool, horizon time.Duration, logger *slog.Logger) *ExpiryScanner {
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}
	return &ExpiryScanner{pool: pool, horizon: horizon, logger: logger}
}

// HandleExpiringLotScan processes TaskTypeExpiringLotScan tasks.
func (s *ExpiryScanner) HandleExpiringLotScan(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(s.horizon)
	rows, err := s.pool.Query(ctx, `SELECT code, medical_code, due_date, quantity
FROM medical_lots
WHERE quantity > 0 AND due_date <= $1
ORDER BY due_date ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			code        string
			medicalCode int
			dueDate     time.Time
			quantity    int
		)
		if err := rows.Scan(&code, &medicalCode, &dueDate, &quantity); err != nil {
			return err
		}
		count++
		s.logger.Warn("lot expiring",
			slog.String("lot", code),
			slog.Int("medical", medicalCode),
			slog.Time("due_date", dueDate),
			slog.Int("quantity", quantity))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.logger.Info("expiring lot scan complete", slog.Int("lots", count))
	return nil
}
