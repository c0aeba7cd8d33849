package api

import "github.com/arqvault/threatmodel/internal/domain"

// AnalysisResponse is the full record returned by GET /analyses/:id, and
// the envelope item for list/create responses.
type AnalysisResponse struct {
	ID             string                  `json:"id"`
	Code           string                  `json:"code"`
	Status         domain.Status           `json:"status"`
	Result         *domain.AnalysisResult  `json:"result,omitempty"`
	FailureReason  string                  `json:"failure_reason,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at"`
	StartedAt      *string                 `json:"started_at,omitempty"`
	CompletedAt    *string                 `json:"completed_at,omitempty"`
}

// ListResponse is the paginated envelope for GET /analyses.
type ListResponse struct {
	Items []AnalysisResponse `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
	Pages int                `json:"pages"`
}

// LogsResponse is returned by GET /analyses/:id/logs.
type LogsResponse struct {
	Logs string `json:"logs"`
}

// AnalyzeResponse is the analyzer service's response to
// POST /api/v1/threat-model/analyze, matching domain.AnalysisResult's
// wire shape so analyzerclient.Client can decode it directly.
type AnalyzeResponse struct {
	ModelUsed      string              `json:"model_used"`
	Components     []domain.Component  `json:"components"`
	Connections    []domain.Connection `json:"connections"`
	Threats        []domain.Threat     `json:"threats"`
	RiskScore      float64             `json:"risk_score"`
	RiskLevel      domain.RiskLevel    `json:"risk_level"`
	ProcessingTime float64             `json:"processing_time"`
	ProcessingLogs []string            `json:"processing_logs,omitempty"`
}

func toAnalysisResponse(a *domain.Analysis) AnalysisResponse {
	r := AnalysisResponse{
		ID:            a.ID,
		Code:          a.Code,
		Status:        a.Status,
		Result:        a.Result,
		FailureReason: a.FailureReason,
		CreatedAt:     a.CreatedAt.Format(timeLayout),
		UpdatedAt:     a.UpdatedAt.Format(timeLayout),
	}
	if a.StartedAt != nil {
		s := a.StartedAt.Format(timeLayout)
		r.StartedAt = &s
	}
	if a.CompletedAt != nil {
		c := a.CompletedAt.Format(timeLayout)
		r.CompletedAt = &c
	}
	return r
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"
