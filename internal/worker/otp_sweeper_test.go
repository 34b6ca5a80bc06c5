package worker

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"cashdrop/internal/model"
)

// The sweep clears both the code and its expiry, so no stale secret or
// dangling deadline survives past the grace window.
func TestSweepClearsCodeAndExpiry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE orders.+otp_code = NULL, otp_expires_at = NULL.+otp_expires_at < NOW\(\)`).
		WithArgs(model.StatusPendingHandoff, "300 seconds").
		WillReturnResult(sqlmock.NewResult(0, 2))

	w := NewOTPSweeper(db)
	if err := w.sweep(context.Background()); err != nil {
		t.Fatalf("sweep() = %v, want nil", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
