package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"

	"cashdrop/internal/model"
	"cashdrop/internal/mw"
	"cashdrop/internal/realtime"
	"cashdrop/internal/service"
)

func TestCanSeeOrder(t *testing.T) {
	runner := "run-1"
	claimed := &model.Order{ID: "o1", CustomerID: "cust-1", RunnerID: &runner, Status: model.StatusRunnerAccepted}
	open := &model.Order{ID: "o2", CustomerID: "cust-1", Status: model.StatusPending}

	tests := []struct {
		name  string
		actor service.Actor
		order *model.Order
		want  bool
	}{
		{"admin", service.Actor{ID: "adm", Role: model.RoleAdmin}, claimed, true},
		{"owner", service.Actor{ID: "cust-1", Role: model.RoleCustomer}, claimed, true},
		{"assigned runner", service.Actor{ID: "run-1", Role: model.RoleRunner}, claimed, true},
		{"other runner on claimed order", service.Actor{ID: "run-2", Role: model.RoleRunner}, claimed, false},
		{"other customer", service.Actor{ID: "cust-2", Role: model.RoleCustomer}, claimed, false},
		{"runner browsing open order", service.Actor{ID: "run-2", Role: model.RoleRunner}, open, true},
		{"customer browsing others' open order", service.Actor{ID: "cust-2", Role: model.RoleCustomer}, open, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canSeeOrder(tt.actor, tt.order); got != tt.want {
				t.Errorf("canSeeOrder(%v, %s) = %v, want %v", tt.actor, tt.order.ID, got, tt.want)
			}
		})
	}
}

func TestRunnerMaySet(t *testing.T) {
	allowed := map[string]bool{
		model.StatusRunnerAtATM:   true,
		model.StatusCashWithdrawn: true,
	}
	for _, status := range []string{
		model.StatusPending, model.StatusRunnerAccepted, model.StatusRunnerAtATM,
		model.StatusCashWithdrawn, model.StatusPendingHandoff, model.StatusCompleted,
		model.StatusCancelled,
	} {
		if got := runnerMaySet(status); got != allowed[status] {
			t.Errorf("runnerMaySet(%q) = %v, want %v", status, got, allowed[status])
		}
	}
}

// A runner must not complete the handoff through the generic status
// endpoint: Pending Handoff and Completed require the code exchange, so
// posting either gets 403 before any write happens.
func TestUpdateStatusHandlerEnforcesHandoffGate(t *testing.T) {
	columns := []string{
		"id", "customer_id", "runner_id",
		"requested_amount", "profit", "compliance_fee", "delivery_fee", "total_service_fee", "total_payment",
		"status", "delivery_style", "notes", "customer_address", "customer_name",
		"address_id", "address_snapshot",
		"otp_code", "otp_expires_at", "otp_attempts",
		"runner_accepted_at", "runner_at_atm_at", "cash_withdrawn_at", "handoff_completed_at",
		"cancelled_at", "cancellation_reason", "rating", "review",
		"version", "created_at", "updated_at",
		"runner_name",
	}

	for _, status := range []string{model.StatusPendingHandoff, model.StatusCompleted} {
		t.Run(status, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()

			now := time.Now()
			mock.ExpectQuery(`FROM orders o`).
				WithArgs("ord-1").
				WillReturnRows(sqlmock.NewRows(columns).AddRow(
					"ord-1", "cust-1", "run-1",
					200.0, 4.0, 3.92, 8.16, 16.08, 216.08,
					model.StatusRunnerAccepted, "standard", "", "12 High St", "Dana",
					nil, nil,
					nil, nil, 0,
					now, nil, nil, nil,
					nil, nil, nil, nil,
					2, now, now,
					"Riley",
				))

			orderSvc := service.NewOrderService(db, nil, service.NewEventService(db, nil), 8.16)
			h := UpdateStatusHandler(orderSvc)

			req := httptest.NewRequest(http.MethodPost, "/api/orders/ord-1/status",
				strings.NewReader(`{"status":"`+status+`"}`))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "ord-1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, mw.ActorCtxKey, mw.Actor{ID: "run-1", Role: model.RoleRunner})
			rec := httptest.NewRecorder()

			h(rec, req.WithContext(ctx))

			if rec.Code != http.StatusForbidden {
				t.Errorf("status %q: got %d, want %d", status, rec.Code, http.StatusForbidden)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unexpected database activity: %v", err)
			}
		})
	}
}

func TestScopeFor(t *testing.T) {
	tests := []struct {
		name      string
		actorID   string
		role      string
		orderID   string
		available bool
		want      realtime.Scope
	}{
		{"customer default", "c1", model.RoleCustomer, "", false,
			realtime.Scope{Kind: realtime.ScopeCustomer, CustomerID: "c1"}},
		{"runner assigned", "r1", model.RoleRunner, "", false,
			realtime.Scope{Kind: realtime.ScopeRunnerAssigned, RunnerID: "r1"}},
		{"runner available feed", "r1", model.RoleRunner, "", true,
			realtime.Scope{Kind: realtime.ScopeRunnerAvailable}},
		{"admin", "a1", model.RoleAdmin, "", false,
			realtime.Scope{Kind: realtime.ScopeAdmin}},
		{"single order wins over role", "c1", model.RoleCustomer, "o1", false,
			realtime.Scope{Kind: realtime.ScopeSingle, OrderID: "o1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scopeFor(tt.actorID, tt.role, tt.orderID, tt.available)
			if got != tt.want {
				t.Errorf("scopeFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
