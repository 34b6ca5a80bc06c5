package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cashdrop/internal/model"
)

func strptr(s string) *string { return &s }

func orderEvent(typ, id, customerID string, runnerID *string, status string, version int64) ChangeEvent {
	o := &model.Order{
		ID:         id,
		CustomerID: customerID,
		RunnerID:   runnerID,
		Status:     status,
		Version:    version,
	}
	ev := ChangeEvent{Type: typ}
	if typ == ChangeDelete {
		ev.Old = o
	} else {
		ev.New = o
	}
	return ev
}

func TestSingleScopeFiltersOtherOrders(t *testing.T) {
	sub := NewSubscriber("", Scope{Kind: ScopeSingle, OrderID: "order-1"}, Handlers{})

	var seen []string
	sub.handlers.OnUpdate = func(new, old *model.Order) {
		seen = append(seen, new.ID)
	}
	sub.handlers.OnInsert = func(new *model.Order) {
		seen = append(seen, new.ID)
	}

	// Mixed batch: only order-1 events may reach the callbacks.
	batch := []ChangeEvent{
		orderEvent(ChangeInsert, "order-2", "cust-a", nil, model.StatusPending, 1),
		orderEvent(ChangeUpdate, "order-1", "cust-b", nil, model.StatusPending, 2),
		orderEvent(ChangeUpdate, "order-3", "cust-b", strptr("run-1"), model.StatusRunnerAccepted, 4),
		orderEvent(ChangeUpdate, "order-1", "cust-b", strptr("run-2"), model.StatusRunnerAccepted, 3),
		orderEvent(ChangeInsert, "order-4", "cust-c", nil, model.StatusPending, 1),
	}
	for _, ev := range batch {
		sub.dispatch(ev)
	}

	assert.Equal(t, []string{"order-1", "order-1"}, seen)
}

func TestScopeMatches(t *testing.T) {
	runner := strptr("run-1")
	tests := []struct {
		name  string
		scope Scope
		ev    ChangeEvent
		want  bool
	}{
		{"customer own", Scope{Kind: ScopeCustomer, CustomerID: "c1"},
			orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusPending, 1), true},
		{"customer other", Scope{Kind: ScopeCustomer, CustomerID: "c1"},
			orderEvent(ChangeUpdate, "o1", "c2", nil, model.StatusPending, 1), false},
		{"available pending unclaimed", Scope{Kind: ScopeRunnerAvailable},
			orderEvent(ChangeInsert, "o1", "c1", nil, model.StatusPending, 1), true},
		{"available pending but claimed", Scope{Kind: ScopeRunnerAvailable},
			orderEvent(ChangeUpdate, "o1", "c1", runner, model.StatusPending, 2), false},
		{"available wrong status", Scope{Kind: ScopeRunnerAvailable},
			orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusCancelled, 2), false},
		{"assigned match", Scope{Kind: ScopeRunnerAssigned, RunnerID: "run-1"},
			orderEvent(ChangeUpdate, "o1", "c1", runner, model.StatusRunnerAtATM, 3), true},
		{"assigned other runner", Scope{Kind: ScopeRunnerAssigned, RunnerID: "run-2"},
			orderEvent(ChangeUpdate, "o1", "c1", runner, model.StatusRunnerAtATM, 3), false},
		{"assigned unassigned order", Scope{Kind: ScopeRunnerAssigned, RunnerID: "run-1"},
			orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusPending, 1), false},
		{"admin sees everything", Scope{Kind: ScopeAdmin},
			orderEvent(ChangeDelete, "o1", "c1", runner, model.StatusCancelled, 9), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Matches(tt.ev))
		})
	}
}

func TestDispatchDiscardsStaleVersions(t *testing.T) {
	sub := NewSubscriber("", Scope{Kind: ScopeAdmin}, Handlers{})

	var versions []int64
	sub.handlers.OnUpdate = func(new, old *model.Order) {
		versions = append(versions, new.Version)
	}

	sub.dispatch(orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusRunnerAccepted, 3))
	// out-of-order arrival of an older write
	sub.dispatch(orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusPending, 2))
	sub.dispatch(orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusRunnerAtATM, 4))
	// duplicate delivery (at-least-once)
	sub.dispatch(orderEvent(ChangeUpdate, "o1", "c1", nil, model.StatusRunnerAtATM, 4))
	// a different order has its own version sequence
	sub.dispatch(orderEvent(ChangeUpdate, "o2", "c1", nil, model.StatusPending, 1))

	assert.Equal(t, []int64{3, 4, 1}, versions)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	sub := NewSubscriber("", Scope{Kind: ScopeAdmin}, Handlers{})
	sub.handlers.OnInsert = func(new *model.Order) {
		panic("handler blew up")
	}

	assert.NotPanics(t, func() {
		sub.dispatch(orderEvent(ChangeInsert, "o1", "c1", nil, model.StatusPending, 1))
	})

	// Subscriber keeps working after the panic.
	var got string
	sub.handlers.OnInsert = func(new *model.Order) { got = new.ID }
	sub.dispatch(orderEvent(ChangeInsert, "o2", "c2", nil, model.StatusPending, 1))
	assert.Equal(t, "o2", got)
}

func TestBindingKeys(t *testing.T) {
	assert.Equal(t, "orders.c1.#", Scope{Kind: ScopeCustomer, CustomerID: "c1"}.BindingKey())
	assert.Equal(t, "orders.*.none.pending", Scope{Kind: ScopeRunnerAvailable}.BindingKey())
	assert.Equal(t, "orders.*.run-1.#", Scope{Kind: ScopeRunnerAssigned, RunnerID: "run-1"}.BindingKey())
	assert.Equal(t, "orders.#", Scope{Kind: ScopeAdmin}.BindingKey())
	// single-order scope binds the whole feed; filtering is client-side only
	assert.Equal(t, "orders.#", Scope{Kind: ScopeSingle, OrderID: "o1"}.BindingKey())
}

func TestRoutingKey(t *testing.T) {
	ev := orderEvent(ChangeUpdate, "o1", "c1", strptr("r1"), model.StatusPendingHandoff, 5)
	assert.Equal(t, "orders.c1.r1.pending_handoff", ev.RoutingKey())

	ev = orderEvent(ChangeInsert, "o1", "c1", nil, model.StatusPending, 1)
	assert.Equal(t, "orders.c1.none.pending", ev.RoutingKey())
}
