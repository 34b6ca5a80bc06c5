package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"cashdrop/internal/model"
	"cashdrop/internal/realtime"
)

const (
	otpTTL         = 10 * time.Minute
	maxOTPAttempts = 3
)

// OTPService gates the terminal handoff transition. Codes, expiry and the
// attempt counter live server-side; verification is never decidable from
// client state alone.
type OTPService struct {
	db     *sql.DB
	pub    ChangePublisher
	events *EventService
}

func NewOTPService(db *sql.DB, pub ChangePublisher, events *EventService) *OTPService {
	return &OTPService{db: db, pub: pub, events: events}
}

// Generate creates a fresh 6-digit code, resets the attempt counter and
// moves the order to Pending Handoff in the same transaction: generation
// and the status transition are atomic from the caller's perspective.
// Regeneration while already in Pending Handoff overwrites the prior code
// and attempts.
func (s *OTPService) Generate(ctx context.Context, orderID string, actor *Actor) (string, error) {
	old, err := s.getForPublish(ctx, orderID)
	if err != nil {
		return "", err
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock order: %w", err)
	}

	if status != model.StatusCashWithdrawn && status != model.StatusPendingHandoff {
		return "", ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, otp_code = $2, otp_expires_at = NOW() + $3::interval, otp_attempts = 0,
		    version = version + 1, updated_at = NOW()
		WHERE id = $4`,
		model.StatusPendingHandoff, code, fmt.Sprintf("%d seconds", int(otpTTL.Seconds())), orderID,
	)
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	s.publishUpdate(ctx, orderID, old)
	return code, nil
}

// Verify checks a submitted code. Fails closed, returning false without an
// error, when there is no code on record, the code expired, or the attempt
// budget is spent. A wrong code burns an attempt. A correct code within
// limits completes the order.
func (s *OTPService) Verify(ctx context.Context, orderID, submitted string) (bool, error) {
	old, err := s.getForPublish(ctx, orderID)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var st otpState
	var code sql.NullString
	var expires sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT status, otp_code, otp_expires_at, otp_attempts FROM orders WHERE id = $1 FOR UPDATE`,
		orderID,
	).Scan(&st.Status, &code, &expires, &st.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock order: %w", err)
	}
	if code.Valid {
		st.Code = &code.String
	}
	if expires.Valid {
		st.ExpiresAt = &expires.Time
	}

	switch verifyDecision(st, submitted, time.Now()) {
	case otpRejected:
		return false, tx.Commit()

	case otpWrongCode:
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET otp_attempts = otp_attempts + 1, version = version + 1, updated_at = NOW()
			WHERE id = $1`, orderID)
		if err != nil {
			return false, fmt.Errorf("count otp attempt: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit tx: %w", err)
		}
		s.publishUpdate(ctx, orderID, old)
		return false, nil

	case otpAccepted:
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, handoff_completed_at = NOW(),
			    otp_code = NULL, otp_expires_at = NULL,
			    version = version + 1, updated_at = NOW()
			WHERE id = $2`,
			model.StatusCompleted, orderID)
		if err != nil {
			return false, fmt.Errorf("complete order: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit tx: %w", err)
		}

		updated := s.publishUpdate(ctx, orderID, old)
		if updated != nil {
			s.events.EmitAsync(ctx, EmitInput{
				OrderID:    orderID,
				EventType:  model.EventOTPVerified,
				FromStatus: &old.Status,
				ToStatus:   &updated.Status,
			})
			s.events.EmitAsync(ctx, EmitInput{
				OrderID:    orderID,
				EventType:  model.EventHandoffCompleted,
				FromStatus: &old.Status,
				ToStatus:   &updated.Status,
			})
		}
		return true, nil
	}

	return false, nil
}

type otpState struct {
	Status    string
	Code      *string
	ExpiresAt *time.Time
	Attempts  int
}

type otpOutcome int

const (
	// otpRejected: fail closed without burning an attempt (no code on
	// record, expired, attempts exhausted, wrong order state).
	otpRejected otpOutcome = iota
	otpWrongCode
	otpAccepted
)

// verifyDecision is the pure verification rule. It reveals nothing beyond
// the outcome: no correct code, no remaining-attempt count.
func verifyDecision(st otpState, submitted string, now time.Time) otpOutcome {
	if st.Status != model.StatusPendingHandoff {
		return otpRejected
	}
	if st.Code == nil || st.ExpiresAt == nil {
		return otpRejected
	}
	if st.Attempts >= maxOTPAttempts {
		return otpRejected
	}
	if now.After(*st.ExpiresAt) {
		return otpRejected
	}
	if submitted != *st.Code {
		return otpWrongCode
	}
	return otpAccepted
}

// generateCode draws a uniform 6-digit code in [100000, 999999]; no
// leading zeros, so the string and numeric forms never disagree.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

func (s *OTPService) getForPublish(ctx context.Context, orderID string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+orderFrom+`WHERE o.id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *OTPService) publishUpdate(ctx context.Context, orderID string, old *model.Order) *model.Order {
	updated, err := s.getForPublish(ctx, orderID)
	if err != nil {
		// The write committed; a missed publish only delays the feed.
		slog.Error("reload order for change feed failed", "order_id", orderID, "error", err)
		return nil
	}
	publishChange(s.pub, realtime.ChangeEvent{Type: realtime.ChangeUpdate, New: updated, Old: old})
	return updated
}
