package repository

import (
	"context"
	"time"

	"github.com/user/serp-tracker/internal/entity"
)

// JobQueue is a delayed queue of analysis jobs ordered by their not-before time.
type JobQueue interface {
	// Push schedules job to become available at job.NotBefore.
	Push(ctx context.Context, job *entity.AnalysisJob) error
	// PopDue removes and returns the earliest job whose NotBefore is <= now, or nil when none is due.
	PopDue(ctx context.Context, now time.Time) (*entity.AnalysisJob, error)
	// Size returns the number of queued jobs, due or not.
	Size(ctx context.Context) (int64, error)
}
