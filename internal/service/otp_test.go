package service

import (
	"strconv"
	"testing"
	"time"

	"cashdrop/internal/model"
)

func otpFixture(code string, ttl time.Duration, attempts int) otpState {
	expires := time.Now().Add(ttl)
	return otpState{
		Status:    model.StatusPendingHandoff,
		Code:      &code,
		ExpiresAt: &expires,
		Attempts:  attempts,
	}
}

func TestVerifyDecisionLockout(t *testing.T) {
	now := time.Now()
	st := otpFixture("482913", time.Minute, 0)

	// three wrong submissions each burn an attempt
	for i := 0; i < 3; i++ {
		if got := verifyDecision(st, "000000", now); got != otpWrongCode {
			t.Fatalf("attempt %d: decision = %v, want otpWrongCode", i+1, got)
		}
		st.Attempts++
	}

	// fourth attempt is locked out even with the correct code
	if got := verifyDecision(st, "482913", now); got != otpRejected {
		t.Errorf("post-lockout correct code: decision = %v, want otpRejected", got)
	}
}

func TestVerifyDecisionExpired(t *testing.T) {
	st := otpFixture("482913", -time.Second, 0)
	if got := verifyDecision(st, "482913", time.Now()); got != otpRejected {
		t.Errorf("expired correct code: decision = %v, want otpRejected", got)
	}
	// expiry rejection must not burn an attempt either
	if got := verifyDecision(st, "000000", time.Now()); got != otpRejected {
		t.Errorf("expired wrong code: decision = %v, want otpRejected", got)
	}
}

func TestVerifyDecisionFailsClosed(t *testing.T) {
	now := time.Now()

	// no OTP on record
	st := otpState{Status: model.StatusPendingHandoff}
	if got := verifyDecision(st, "482913", now); got != otpRejected {
		t.Errorf("no code on record: decision = %v, want otpRejected", got)
	}

	// order not awaiting handoff
	st = otpFixture("482913", time.Minute, 0)
	st.Status = model.StatusCashWithdrawn
	if got := verifyDecision(st, "482913", now); got != otpRejected {
		t.Errorf("wrong status: decision = %v, want otpRejected", got)
	}

	st.Status = model.StatusCompleted
	if got := verifyDecision(st, "482913", now); got != otpRejected {
		t.Errorf("terminal status: decision = %v, want otpRejected", got)
	}
}

func TestVerifyDecisionAccepts(t *testing.T) {
	st := otpFixture("482913", time.Minute, 2)
	if got := verifyDecision(st, "482913", time.Now()); got != otpAccepted {
		t.Errorf("correct code within limits: decision = %v, want otpAccepted", got)
	}
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q is not numeric: %v", code, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d outside [100000, 999999]", n)
		}
	}
}
