package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cashdrop/internal/fees"
	"cashdrop/internal/mw"
	"cashdrop/internal/service"
)

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnknownEventType),
		errors.Is(err, fees.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func actor(r *http.Request) (service.Actor, bool) {
	a, ok := mw.ActorFrom(r.Context())
	return service.Actor{ID: a.ID, Role: a.Role}, ok
}
