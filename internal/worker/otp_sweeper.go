package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cashdrop/internal/model"
)

// OTPSweeper periodically clears expired OTP codes from orders still in
// Pending Handoff. Verification fails closed on an expired code anyway;
// the sweep keeps stale secrets out of the table.
type OTPSweeper struct {
	db       *sql.DB
	interval time.Duration
	grace    time.Duration
}

func NewOTPSweeper(db *sql.DB) *OTPSweeper {
	return &OTPSweeper{
		db:       db,
		interval: time.Minute,
		grace:    5 * time.Minute,
	}
}

func (w *OTPSweeper) Start(ctx context.Context) {
	slog.Info("starting otp sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("otp sweeper stopped")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				slog.Error("otp sweep failed", "error", err)
			}
		}
	}
}

func (w *OTPSweeper) sweep(ctx context.Context) error {
	res, err := w.db.ExecContext(ctx, `
		UPDATE orders
		SET otp_code = NULL, otp_expires_at = NULL, version = version + 1, updated_at = NOW()
		WHERE status = $1 AND otp_code IS NOT NULL AND otp_expires_at < NOW() - $2::interval`,
		model.StatusPendingHandoff, fmt.Sprintf("%d seconds", int(w.grace.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("clear expired otps: %w", err)
	}

	cleared, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear expired otps: %w", err)
	}
	if cleared > 0 {
		slog.Info("cleared expired otps", "count", cleared)
	}
	return nil
}
