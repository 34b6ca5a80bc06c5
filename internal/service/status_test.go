package service

import (
	"testing"

	"cashdrop/internal/model"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.StatusPending, model.StatusRunnerAccepted, true},
		{model.StatusRunnerAccepted, model.StatusRunnerAtATM, true},
		{model.StatusRunnerAtATM, model.StatusCashWithdrawn, true},
		{model.StatusCashWithdrawn, model.StatusPendingHandoff, true},
		{model.StatusPendingHandoff, model.StatusCompleted, true},

		// no skipping forward
		{model.StatusPending, model.StatusRunnerAtATM, false},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusRunnerAccepted, model.StatusCashWithdrawn, false},
		{model.StatusCashWithdrawn, model.StatusCompleted, false},

		// no going back
		{model.StatusRunnerAccepted, model.StatusPending, false},
		{model.StatusCashWithdrawn, model.StatusRunnerAtATM, false},

		// cancel reachable from every non-terminal status
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusRunnerAccepted, model.StatusCancelled, true},
		{model.StatusRunnerAtATM, model.StatusCancelled, true},
		{model.StatusCashWithdrawn, model.StatusCancelled, true},
		{model.StatusPendingHandoff, model.StatusCancelled, true},

		// terminal states are absorbing
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusCancelled, model.StatusCancelled, false},
		{model.StatusCompleted, model.StatusPending, false},
		{model.StatusCancelled, model.StatusRunnerAccepted, false},

		{"", model.StatusRunnerAccepted, false},
		{model.StatusPending, "", false},
		{"", model.StatusCancelled, false},
	}
	for _, tt := range tests {
		got := ValidTransition(tt.from, tt.to)
		if got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMilestoneColumns(t *testing.T) {
	want := map[string]string{
		model.StatusRunnerAccepted: "runner_accepted_at",
		model.StatusRunnerAtATM:    "runner_at_atm_at",
		model.StatusCashWithdrawn:  "cash_withdrawn_at",
		model.StatusCompleted:      "handoff_completed_at",
	}
	for status, col := range want {
		if milestoneColumn[status] != col {
			t.Errorf("milestoneColumn[%q] = %q, want %q", status, milestoneColumn[status], col)
		}
	}
	if _, ok := milestoneColumn[model.StatusPendingHandoff]; ok {
		t.Error("Pending Handoff must not stamp a milestone column; OTP state tracks it")
	}
}
