package entity

import "time"

// AnalysisKind selects the resolver a job runs.
type AnalysisKind string

const (
	KindCampaign   AnalysisKind = "campaign"
	KindSingleSite AnalysisKind = "single_site"
)

// AnalysisRequest is what a scheduling collaborator hands to the core.
type AnalysisRequest struct {
	Kind     AnalysisKind `json:"kind"`
	Query    string       `json:"query"`
	Websites []string     `json:"websites"`
	Location string       `json:"location,omitempty"`
	MaxPages int          `json:"max_pages,omitempty"`
	// QueryID is an opaque identifier of the caller's saved query, echoed into persisted rows.
	QueryID string `json:"query_id,omitempty"`
}

// AnalysisJob is a queued AnalysisRequest.
type AnalysisJob struct {
	ID         string          `json:"id"`
	Request    AnalysisRequest `json:"request"`
	NotBefore  time.Time       `json:"not_before"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}
