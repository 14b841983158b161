package response

import (
	"time"

	"github.com/user/serp-tracker/internal/entity"
)

type SubmitAnalysisResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	JobID     string    `json:"job_id"`
	NotBefore time.Time `json:"not_before"`
}

// LatestResultResponse is a DTO for the most recent stored position, mirroring entity.SeoResult.
type LatestResultResponse struct {
	Query      string    `json:"query"`
	Website    string    `json:"website"`
	Found      bool      `json:"found"`
	Position   *int      `json:"position"`
	URLFound   *string   `json:"url_found"`
	Method     string    `json:"method"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

func NewLatestResultResponse(r *entity.SeoResult) LatestResultResponse {
	return LatestResultResponse{
		Query:      r.Query,
		Website:    r.Website,
		Found:      r.Found,
		Position:   r.Position,
		URLFound:   r.URLFound,
		Method:     string(r.Method),
		AnalyzedAt: r.AnalyzedAt,
	}
}
