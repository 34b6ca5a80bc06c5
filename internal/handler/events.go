package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cashdrop/internal/model"
	"cashdrop/internal/service"
)

type emitEventRequest struct {
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	ClientActionID string          `json:"client_action_id"`
	Metadata       json.RawMessage `json:"metadata"`
}

// EmitEventHandler records a domain event on an order (runner_en_route,
// runner_arrived; refund milestones for admins). Status never changes
// here; this is the sub-status channel, and lifecycle-owned event types
// are rejected for non-admin callers.
func EmitEventHandler(eventSvc *service.EventService, orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req emitEventRequest
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
		if a.Role != model.RoleAdmin && model.SystemEventType(req.EventType) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		ev, err := eventSvc.Emit(r.Context(), service.EmitInput{
			OrderID:        orderID,
			EventType:      req.EventType,
			Payload:        req.Payload,
			Actor:          &a,
			ClientActionID: req.ClientActionID,
			Metadata:       req.Metadata,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ev)
	}
}

func ListEventsHandler(eventSvc *service.EventService, orderSvc *service.OrderService) http.HandlerFunc {
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
		if !canSeeOrder(a, order) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		events, err := eventSvc.ListByOrder(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, events)
	}
}
