package handler

import "screener/internal/screening/models"

// VerdictResponse is one element of the POST /api/v1/screen response.
type VerdictResponse struct {
	ID           int64 `json:"id"`
	NameMatch    bool  `json:"name_match"`
	DOBMatch     bool  `json:"dob_match"`
	CountryMatch bool  `json:"country_match"`
}

// FromVerdicts converts verdicts to the response body, keeping their order.
func FromVerdicts(verdicts []models.Verdict) []VerdictResponse {
	resp := make([]VerdictResponse, 0, len(verdicts))
	for _, v := range verdicts {
		resp = append(resp, VerdictResponse{
			ID:           v.ID,
			NameMatch:    v.NameMatch,
			DOBMatch:     v.DOBMatch,
			CountryMatch: v.CountryMatch,
		})
	}
	return resp
}

// MessageResponse is a plain message body.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports each dependency check.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
