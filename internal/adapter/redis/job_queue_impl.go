package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
)

const jobQueueKey = "serp:jobs"

// popDueScript pops the lowest-scored member whose score is <= ARGV[1].
// KEYS[1] = sorted set of JSON jobs scored by not-before unix milliseconds
var popDueScript = redis.NewScript(`
local items = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #items == 0 then
    return false
end
redis.call("ZREM", KEYS[1], items[1])
return items[1]
`)

// JobQueueImpl provides a concrete implementation for the JobQueue interface using a Redis sorted set.
type JobQueueImpl struct {
	client redis.UniversalClient
}

// NewJobQueue creates a new instance of JobQueueImpl.
func NewJobQueue(client redis.UniversalClient) *JobQueueImpl {
	return &JobQueueImpl{client: client}
}

// Push adds job scored by its NotBefore time.
func (r *JobQueueImpl) Push(ctx context.Context, job *entity.AnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	z := redis.Z{Score: float64(job.NotBefore.UnixMilli()), Member: payload}
	return repository.Infrastructure("redis", "queue push", r.client.ZAdd(ctx, jobQueueKey, z).Err())
}

// PopDue atomically removes the earliest job due at now.
func (r *JobQueueImpl) PopDue(ctx context.Context, now time.Time) (*entity.AnalysisJob, error) {
	res, err := popDueScript.Run(ctx, r.client, []string{jobQueueKey}, strconv.FormatInt(now.UnixMilli(), 10)).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Infrastructure("redis", "queue pop", err)
	}
	var job entity.AnalysisJob
	if err := json.Unmarshal([]byte(res), &job); err != nil {
		return nil, fmt.Errorf("decode queued job: %w", err)
	}
	return &job, nil
}

// Size returns the current number of jobs in the queue.
func (r *JobQueueImpl) Size(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, jobQueueKey).Result()
	return n, repository.Infrastructure("redis", "queue size", err)
}
