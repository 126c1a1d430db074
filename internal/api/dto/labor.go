package dto

import (
	"ride-logbook-service/internal/domain"
	"time"
)

type LaborViolationResponse struct {
	ID         int64                   `json:"id,omitempty"`
	DriverID   int64                   `json:"driver_id"`
	ShiftID    *int64                  `json:"shift_id,omitempty"`
	Type       string                  `json:"type"`
	Severity   string                  `json:"severity"`
	Message    string                  `json:"message"`
	Details    domain.ViolationDetails `json:"details,omitempty"`
	DetectedAt time.Time               `json:"detected_at"`
	Resolved   bool                    `json:"resolved"`
}

type ShiftValidationResponse struct {
	ShiftID    int64                    `json:"shift_id"`
	Violations []LaborViolationResponse `json:"violations"`
}

type WeeklyReportResponse struct {
	DriverID       int64                    `json:"driver_id"`
	WeekStart      string                   `json:"week_start"`
	ShiftCount     int                      `json:"shift_count"`
	TotalHours     float64                  `json:"total_hours"`
	ComplianceRate float64                  `json:"compliance_rate"`
	NextAvailable  *time.Time               `json:"next_available,omitempty"`
	Violations     []LaborViolationResponse `json:"violations"`
}

func NewLaborViolations(vs []domain.LaborViolation) []LaborViolationResponse {
	out := make([]LaborViolationResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, LaborViolationResponse{
			ID:         v.ID,
			DriverID:   v.DriverID,
			ShiftID:    v.ShiftID,
			Type:       string(v.Type),
			Severity:   string(v.Severity),
			Message:    v.Message,
			Details:    v.Details,
			DetectedAt: v.DetectedAt,
			Resolved:   v.Resolved,
		})
	}
	return out
}

func NewWeeklyReportResponse(r domain.WeeklyComplianceReport) WeeklyReportResponse {
	return WeeklyReportResponse{
		DriverID:       r.DriverID,
		WeekStart:      r.WeekStart.Format(domain.DateLayout),
		ShiftCount:     r.ShiftCount,
		TotalHours:     r.TotalHours,
		ComplianceRate: r.ComplianceRate,
		NextAvailable:  r.NextAvailable,
		Violations:     NewLaborViolations(r.Violations),
	}
}
