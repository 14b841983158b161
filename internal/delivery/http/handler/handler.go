package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/delivery/http/request"
	"github.com/user/serp-tracker/internal/delivery/http/response"
	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
)

// AnalysisSubmitter queues analysis requests.
type AnalysisSubmitter interface {
	Submit(ctx context.Context, req entity.AnalysisRequest, notBefore time.Time) (string, error)
	SubmitWithJitter(ctx context.Context, req entity.AnalysisRequest) (string, time.Time, error)
}

// QuotaReporter reports the day's quota usage.
type QuotaReporter interface {
	Status(ctx context.Context, now time.Time) entity.QuotaStatus
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	submitter AnalysisSubmitter
	quota     QuotaReporter
	results   repository.SeoResultRepository
	checks    map[string]HealthCheck
	logger    *zap.Logger
}

// NewHandler creates the HTTP handlers. results may be nil when no result store is configured.
func NewHandler(
	submitter AnalysisSubmitter,
	quota QuotaReporter,
	results repository.SeoResultRepository,
	checks map[string]HealthCheck,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		submitter: submitter,
		quota:     quota,
		results:   results,
		checks:    checks,
		logger:    logger,
	}
}

func (h *Handler) HandleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	var body request.SubmitAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req := body.ToEntity()
	var (
		jobID     string
		notBefore time.Time
		err       error
	)
	if body.Immediate {
		notBefore = time.Now()
		jobID, err = h.submitter.Submit(r.Context(), req, notBefore)
	} else {
		jobID, notBefore, err = h.submitter.SubmitWithJitter(r.Context(), req)
	}
	if err != nil {
		if errors.Is(err, repository.ErrInvalidArgument) {
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to submit analysis", zap.String("query", req.Query), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.SubmitAnalysisResponse{
		Status:    "success",
		Message:   "Analysis queued",
		JobID:     jobID,
		NotBefore: notBefore.UTC(),
	})
}

func (h *Handler) HandleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.quota.Status(r.Context(), time.Now()))
}

func (h *Handler) HandleLatestResult(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		h.writeJSONError(w, "Result store not configured", http.StatusNotImplemented)
		return
	}
	query := r.URL.Query().Get("query")
	website := r.URL.Query().Get("website")
	if query == "" || website == "" {
		h.writeJSONError(w, "query and website parameters are required", http.StatusBadRequest)
		return
	}

	res, err := h.results.LatestForWebsite(r.Context(), query, website)
	if err != nil {
		h.logger.Error("Failed to load latest result", zap.String("website", website), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if res == nil {
		h.writeJSONError(w, "No result for the given query and website", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewLatestResultResponse(res))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = "unhealthy"
			healthy = false
			h.logger.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		status[name] = "healthy"
	}

	if !healthy {
		status["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
