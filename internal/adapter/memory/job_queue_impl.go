package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/serp-tracker/internal/entity"
)

// JobQueueImpl is an in-process delayed JobQueue.
type JobQueueImpl struct {
	mu   sync.Mutex
	jobs []*entity.AnalysisJob
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueueImpl {
	return &JobQueueImpl{}
}

// Push inserts job keeping the queue ordered by NotBefore, FIFO among equal times.
func (q *JobQueueImpl) Push(_ context.Context, job *entity.AnalysisJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := sort.Search(len(q.jobs), func(i int) bool { return q.jobs[i].NotBefore.After(job.NotBefore) })
	q.jobs = append(q.jobs, nil)
	copy(q.jobs[i+1:], q.jobs[i:])
	q.jobs[i] = job
	return nil
}

// PopDue removes the earliest job due at now.
func (q *JobQueueImpl) PopDue(_ context.Context, now time.Time) (*entity.AnalysisJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 || q.jobs[0].NotBefore.After(now) {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

// Size returns the number of queued jobs.
func (q *JobQueueImpl) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}
