package dto

import "ride-logbook-service/internal/domain"

type MetricRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type MatrixRequest struct {
	Origins      []string `json:"origins"`
	Destinations []string `json:"destinations"`
}

type MetricResponse struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	Source          string  `json:"source"`
}

type MatrixResponse struct {
	Cells []MetricResponse `json:"cells"`
}

func NewMetricResponse(origin, destination string, m domain.RouteMetric) MetricResponse {
	return MetricResponse{
		Origin:          origin,
		Destination:     destination,
		DistanceKm:      m.DistanceKm,
		DurationMinutes: m.DurationMinutes,
		Source:          string(m.Source),
	}
}

type OptimizeResponse struct {
	Removed int64 `json:"removed"`
}
