package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"tryonapi/models"
)

// Non-terminal jobs change state while the kiosk polls, so they are only
// held long enough to absorb bursts of polling.
const inFlightJobTTL = time.Second

var ErrJobNotFound = errors.New("try-on job not found")

// TaskEnqueuer is the subset of *asynq.Client the API needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobInspector is the subset of *asynq.Inspector the job cache needs.
type JobInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

type TryOnJobCacheProvider interface {
	GetJob(ctx context.Context, id string) (models.TryOnJobResponse, error)
}

// TryOnJobCache serves job status lookups from ristretto, loading from the
// broker on a miss.
type TryOnJobCache struct {
	cache *cache.LoadableCache[models.TryOnJobResponse]
}

func NewTryOnJobCache(inspector JobInspector, queue string, retention time.Duration, logger *zap.Logger) (*TryOnJobCache, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	ristrettoStore := ristretto_store.NewRistretto(ristrettoCache)

	loadFunction := func(ctx context.Context, key any) (models.TryOnJobResponse, []store.Option, error) {
		id, ok := key.(string)
		if !ok {
			return models.TryOnJobResponse{}, nil, fmt.Errorf("invalid key type provided to job cache: expected string, got %T", key)
		}

		logger.Debug("Job cache miss", zap.String("job_id", id))
		info, err := inspector.GetTaskInfo(queue, id)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				return models.TryOnJobResponse{}, nil, ErrJobNotFound
			}
			return models.TryOnJobResponse{}, nil, err
		}

		job := JobFromTaskInfo(info)
		ttl := inFlightJobTTL
		if job.Status.Terminal() {
			ttl = retention
		}
		return job, []store.Option{store.WithExpiration(ttl)}, nil
	}

	return &TryOnJobCache{
		cache: cache.NewLoadable[models.TryOnJobResponse](
			loadFunction,
			cache.New[models.TryOnJobResponse](ristrettoStore),
		),
	}, nil
}

func (s *TryOnJobCache) GetJob(ctx context.Context, id string) (models.TryOnJobResponse, error) {
	if id == "" {
		return models.TryOnJobResponse{}, ErrJobNotFound
	}
	return s.cache.Get(ctx, id)
}

// JobFromTaskInfo maps broker task state onto the kiosk job states. Retries
// and scheduled runs still count as pending.
func JobFromTaskInfo(info *asynq.TaskInfo) models.TryOnJobResponse {
	job := models.TryOnJobResponse{ID: info.ID}

	switch info.State {
	case asynq.TaskStateCompleted:
		job.Status = models.TryOnJobCompleted
	case asynq.TaskStateArchived:
		job.Status = models.TryOnJobFailed
	case asynq.TaskStateActive:
		job.Status = models.TryOnJobProcessing
	default:
		job.Status = models.TryOnJobPending
	}

	var result models.TryOnJobResult
	if len(info.Result) > 0 && json.Unmarshal(info.Result, &result) == nil {
		job.ImageURL = result.ImageURL
		job.Error = result.Error
		job.ErrorCode = result.ErrorCode
	}
	if job.Status == models.TryOnJobFailed && job.Error == "" {
		job.Error = info.LastErr
	}
	return job
}
