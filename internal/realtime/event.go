// Package realtime carries order change events between the repository
// writes and the per-role live subscriptions, over a topic exchange.
package realtime

import (
	"strings"

	"cashdrop/internal/model"
)

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent is the change-feed payload: the event kind plus the new and
// (when present) old row, so subscribers can diff.
type ChangeEvent struct {
	Type string       `json:"type"`
	New  *model.Order `json:"new,omitempty"`
	Old  *model.Order `json:"old,omitempty"`
}

// row returns the order the event is about; for deletes that is the old row.
func (ev ChangeEvent) row() *model.Order {
	if ev.New != nil {
		return ev.New
	}
	return ev.Old
}

// RoutingKey encodes customer, runner and status into the topic key:
// orders.<customer_id>.<runner_id|none>.<status_slug>. Broad scopes bind
// with wildcards; narrow predicates the broker cannot express are
// re-checked client-side.
func (ev ChangeEvent) RoutingKey() string {
	o := ev.row()
	if o == nil {
		return "orders.unknown.none.unknown"
	}
	runner := "none"
	if o.RunnerID != nil {
		runner = *o.RunnerID
	}
	return "orders." + o.CustomerID + "." + runner + "." + statusSlug(o.Status)
}

func statusSlug(status string) string {
	return strings.ReplaceAll(strings.ToLower(status), " ", "_")
}

// Subscription scopes, one per (role, scope) combination.
const (
	ScopeCustomer        = "customer"
	ScopeRunnerAvailable = "runner_available"
	ScopeRunnerAssigned  = "runner_assigned"
	ScopeAdmin           = "admin"
	ScopeSingle          = "single"
)

type Scope struct {
	Kind       string
	CustomerID string
	RunnerID   string
	OrderID    string
}

// BindingKey is the server-side filter for the scope. The single-order
// scope deliberately binds the whole feed and filters client-side only.
func (s Scope) BindingKey() string {
	switch s.Kind {
	case ScopeCustomer:
		return "orders." + s.CustomerID + ".#"
	case ScopeRunnerAvailable:
		return "orders.*.none." + statusSlug(model.StatusPending)
	case ScopeRunnerAssigned:
		return "orders.*." + s.RunnerID + ".#"
	default:
		return "orders.#"
	}
}

// Matches is the client-side filter applied to every inbound event. It
// re-checks predicates the broker-side binding cannot express: the
// available-orders compound (status AND no runner) and the single-order id.
func (s Scope) Matches(ev ChangeEvent) bool {
	o := ev.row()
	if o == nil {
		return false
	}
	switch s.Kind {
	case ScopeCustomer:
		return o.CustomerID == s.CustomerID
	case ScopeRunnerAvailable:
		return o.Status == model.StatusPending && o.RunnerID == nil
	case ScopeRunnerAssigned:
		return o.RunnerID != nil && *o.RunnerID == s.RunnerID
	case ScopeAdmin:
		return true
	case ScopeSingle:
		return o.ID == s.OrderID
	}
	return false
}
