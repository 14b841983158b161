package request

import "github.com/user/serp-tracker/internal/entity"

// SubmitAnalysisRequest is the body of POST /api/analyses.
type SubmitAnalysisRequest struct {
	Kind     string   `json:"kind"` // "campaign" or "single_site"
	Query    string   `json:"query"`
	Websites []string `json:"websites"`
	Location string   `json:"location,omitempty"`
	MaxPages int      `json:"max_pages,omitempty"`
	QueryID  string   `json:"query_id,omitempty"`
	// Immediate skips the jittered start delay.
	Immediate bool `json:"immediate,omitempty"`
}

// ToEntity converts the body into an AnalysisRequest. An empty kind means campaign.
func (r SubmitAnalysisRequest) ToEntity() entity.AnalysisRequest {
	kind := entity.AnalysisKind(r.Kind)
	if kind == "" {
		kind = entity.KindCampaign
	}
	return entity.AnalysisRequest{
		Kind:     kind,
		Query:    r.Query,
		Websites: r.Websites,
		Location: r.Location,
		MaxPages: r.MaxPages,
		QueryID:  r.QueryID,
	}
}
