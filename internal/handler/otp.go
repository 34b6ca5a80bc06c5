package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cashdrop/internal/model"
	"cashdrop/internal/service"
)

// GenerateOTPHandler: the assigned runner requests a handoff code once the
// cash is withdrawn. The code is returned to the customer's view through
// the order row, never through this response — the runner only learns it
// succeeded.
func GenerateOTPHandler(otpSvc *service.OTPService, orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
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

		if _, err := otpSvc.Generate(r.Context(), orderID, &a); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// OTPCodeHandler lets the order's customer read the active code to hand to
// the runner in person.
func OTPCodeHandler(orderSvc *service.OrderService) http.HandlerFunc {
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
		if order.CustomerID != a.ID {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if order.Status != model.StatusPendingHandoff || order.OTPCode == nil {
			http.Error(w, "no active code", http.StatusConflict)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"code":       *order.OTPCode,
			"expires_at": order.OTPExpiresAt,
		})
	}
}

type verifyOTPRequest struct {
	Code string `json:"code"`
}

// VerifyOTPHandler: the runner submits the code the customer read out.
// The response is the boolean outcome only; nothing else leaks.
func VerifyOTPHandler(otpSvc *service.OTPService, orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req verifyOTPRequest
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

		verified, err := otpSvc.Verify(r.Context(), orderID, req.Code)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"verified": verified})
	}
}
