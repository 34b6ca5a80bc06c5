package service

import "cashdrop/internal/model"

// forwardPredecessor encodes the legal forward transitions as data: each
// target status is reachable from exactly one predecessor. Cancellation is
// handled separately (legal from any non-terminal status).
var forwardPredecessor = map[string]string{
	model.StatusRunnerAccepted: model.StatusPending,
	model.StatusRunnerAtATM:    model.StatusRunnerAccepted,
	model.StatusCashWithdrawn:  model.StatusRunnerAtATM,
	model.StatusPendingHandoff: model.StatusCashWithdrawn,
	model.StatusCompleted:      model.StatusPendingHandoff,
}

// milestoneColumn maps a target status to the timestamp column stamped when
// the order reaches it.
var milestoneColumn = map[string]string{
	model.StatusRunnerAccepted: "runner_accepted_at",
	model.StatusRunnerAtATM:    "runner_at_atm_at",
	model.StatusCashWithdrawn:  "cash_withdrawn_at",
	model.StatusCompleted:      "handoff_completed_at",
}

func terminal(status string) bool {
	return status == model.StatusCompleted || status == model.StatusCancelled
}

// ValidTransition reports whether from -> to is a legal status change.
func ValidTransition(from, to string) bool {
	if to == model.StatusCancelled {
		return from != "" && !terminal(from)
	}
	pred, ok := forwardPredecessor[to]
	return ok && pred == from
}
