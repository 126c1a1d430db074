package dto

import "ride-logbook-service/internal/domain"

type RuleResponse struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Unit        string `json:"unit"`
	IsDefault   bool   `json:"is_default"`
	Description string `json:"description,omitempty"`
}

type SetRuleRequest struct {
	Value string `json:"value"`
}

func NewRuleResponse(v domain.RuleValue, description string) RuleResponse {
	return RuleResponse{
		Name:        string(v.Name),
		Value:       v.Raw,
		Unit:        string(v.Unit),
		IsDefault:   v.IsDefault,
		Description: description,
	}
}
