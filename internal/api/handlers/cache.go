package handlers

import (
	"net/http"
	"ride-logbook-service/internal/api/dto"
	"ride-logbook-service/internal/services"
)

// maxMatrixCells bounds a single /routes/matrix request.
const maxMatrixCells = 2500

// CacheHandler exposes the route-metric cache.
type CacheHandler struct {
	Cache *services.RouteCache
}

func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Cache.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (h *CacheHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	n, err := h.Cache.Optimize(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.OptimizeResponse{Removed: n})
}

func (h *CacheHandler) Metric(w http.ResponseWriter, r *http.Request) {
	var req dto.MetricRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.Cache.Metric(r.Context(), req.Origin, req.Destination)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewMetricResponse(req.Origin, req.Destination, m))
}

func (h *CacheHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	var req dto.MatrixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Origins) == 0 || len(req.Destinations) == 0 {
		writeError(w, r, http.StatusBadRequest, "origins and destinations are required")
		return
	}
	if len(req.Origins)*len(req.Destinations) > maxMatrixCells {
		writeError(w, r, http.StatusBadRequest, "matrix too large")
		return
	}

	grid, err := h.Cache.MetricMany(r.Context(), req.Origins, req.Destinations)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.MatrixResponse{Cells: make([]dto.MetricResponse, 0, len(req.Origins)*len(req.Destinations))}
	for i, o := range req.Origins {
		for j, d := range req.Destinations {
			res.Cells = append(res.Cells, dto.NewMetricResponse(o, d, grid[i][j]))
		}
	}
	writeJSON(w, r, http.StatusOK, res)
}
