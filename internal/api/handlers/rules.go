package handlers

import (
	"net/http"
	"ride-logbook-service/internal/api/dto"
	"ride-logbook-service/internal/domain"
	"ride-logbook-service/internal/services"

	"github.com/go-chi/chi/v5"
)

type RuleHandler struct {
	Rules *services.RuleStore
}

// List returns the effective value of every catalog rule for a company.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	defs := h.Rules.Definitions()
	res := make([]dto.RuleResponse, 0, len(defs))
	for _, def := range defs {
		v, err := h.Rules.Get(r.Context(), companyID, def.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		res = append(res, dto.NewRuleResponse(v, def.Description))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *RuleHandler) Set(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.SetRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	name := domain.RuleName(chi.URLParam(r, "name"))
	if err := h.Rules.Set(r.Context(), companyID, name, req.Value); err != nil {
		writeServiceError(w, r, err)
		return
	}

	v, err := h.Rules.Get(r.Context(), companyID, name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	def, _ := domain.LookupRule(name)
	writeJSON(w, r, http.StatusOK, dto.NewRuleResponse(v, def.Description))
}
