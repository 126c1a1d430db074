package handlers

import (
	"net/http"
	"ride-logbook-service/internal/api/dto"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/services"
	"time"

	"github.com/go-chi/chi/v5"
)

type LaborHandler struct {
	Validator *services.LaborValidator
	Loc       *time.Location
}

func (h *LaborHandler) ValidateShift(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	vs, err := h.Validator.ValidateShift(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ShiftValidationResponse{
		ShiftID:    id,
		Violations: dto.NewLaborViolations(vs),
	})
}

// Week returns the compliance report of the ISO week containing {date}.
func (h *LaborHandler) Week(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	loc := h.Loc
	if loc == nil {
		loc = time.Local
	}
	day, err := domain.ParseDate("date", chi.URLParam(r, "date"), loc)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.Validator.ValidateWeek(r.Context(), id, day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewWeeklyReportResponse(rep))
}

// Open lists the unresolved work-time violations of a driver.
func (h *LaborHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	vs, err := h.Validator.ListOpen(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewLaborViolations(vs))
}
