package handlers

import (
	"net/http"
	"ride-logbook-service/internal/services"
)

type RideHandler struct {
	Validator *services.RideValidator
}

// Validate runs the ride rules against a stored ride and records the outcome.
func (h *RideHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Validator.ValidateAndPersist(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
