package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cashdrop/internal/service"
)

// ReorderEligibilityHandler runs the one-tap-reorder precondition check
// for a past order.
func ReorderEligibilityHandler(reorderSvc *service.ReorderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		decision, err := reorderSvc.Evaluate(r.Context(), a.ID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, decision)
	}
}
