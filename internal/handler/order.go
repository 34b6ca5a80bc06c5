package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cashdrop/internal/model"
	"cashdrop/internal/service"
)

func CreateOrderHandler(orderSvc *service.OrderService, authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var in service.CreateOrderInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		customer, err := authSvc.GetUser(r.Context(), a.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		order, err := orderSvc.Create(r.Context(), customer, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

// ListOrdersHandler is the role-based projection: customers see their own
// orders, runners their assignments, admins everything.
func ListOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var (
			orders []model.Order
			err    error
		)
		switch a.Role {
		case model.RoleAdmin:
			orders, err = orderSvc.ListAll(r.Context())
		case model.RoleRunner:
			orders, err = orderSvc.ListByRunner(r.Context(), a.ID)
		default:
			orders, err = orderSvc.ListByCustomer(r.Context(), a.ID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

func AvailableOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := orderSvc.ListAvailable(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func GetOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		order, err := orderSvc.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !canSeeOrder(a, order) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// canSeeOrder: owner, assigned runner, or admin. Unclaimed Pending orders
// are visible to any runner browsing the marketplace.
func canSeeOrder(a service.Actor, o *model.Order) bool {
	switch {
	case a.Role == model.RoleAdmin:
		return true
	case o.CustomerID == a.ID:
		return true
	case o.RunnerID != nil && *o.RunnerID == a.ID:
		return true
	case a.Role == model.RoleRunner && o.Status == model.StatusPending && o.RunnerID == nil:
		return true
	}
	return false
}

func AcceptOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := orderSvc.Accept(r.Context(), chi.URLParam(r, "id"), a.ID); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// runnerMaySet limits the generic status endpoint to the en-route
// milestones. Pending Handoff is entered only by code generation and
// Completed only by code verification; a runner cannot reach either
// here and skip the handoff exchange.
func runnerMaySet(status string) bool {
	return status == model.StatusRunnerAtATM || status == model.StatusCashWithdrawn
}

func UpdateStatusHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		orderID := chi.URLParam(r, "id")
		order, err := orderSvc.GetByID(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if a.Role != model.RoleAdmin && (order.RunnerID == nil || *order.RunnerID != a.ID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if a.Role != model.RoleAdmin && !runnerMaySet(req.Status) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if err := orderSvc.UpdateStatus(r.Context(), orderID, req.Status, &a); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func CancelOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		orderID := chi.URLParam(r, "id")
		order, err := orderSvc.GetByID(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !canSeeOrder(a, order) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		if err := orderSvc.Cancel(r.Context(), orderID, req.Reason, &a); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func ReviewOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		err := orderSvc.SetReview(r.Context(), chi.URLParam(r, "id"), a.ID, req.Rating, req.Review)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
