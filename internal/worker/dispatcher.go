package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

// JobRunner executes a persisted extraction job.
type JobRunner interface {
	RunJob(ctx context.Context, id string) error
}

// LocalDispatcher runs jobs on an in-process worker pool.
type LocalDispatcher struct {
	pool   *WorkerPool
	ctx    context.Context
	logger zerolog.Logger

	mu     sync.RWMutex
	runner JobRunner
}

// NewLocalDispatcher runs tasks under ctx rather than the request context, so jobs survive
// the HTTP request that queued them.
func NewLocalDispatcher(ctx context.Context, pool *WorkerPool, logger zerolog.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		pool:   pool,
		ctx:    ctx,
		logger: logger,
	}
}

// Bind sets the runner; the job service needs the dispatcher before it exists.
func (d *LocalDispatcher) Bind(runner JobRunner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runner = runner
}

func (d *LocalDispatcher) Dispatch(_ context.Context, job *models.ExtractionJob) error {
	d.mu.RLock()
	runner := d.runner
	d.mu.RUnlock()
	if runner == nil {
		return errors.New("dispatcher has no job runner")
	}

	id := job.ID
	return d.pool.Submit(func() {
		if err := runner.RunJob(d.ctx, id); err != nil {
			d.logger.Error().Err(err).Str("job_id", id).Msg("Extraction job failed")
		}
	})
}

// ExtractionPublisher publishes job requests for an out-of-process worker.
type ExtractionPublisher interface {
	PublishExtractionRequested(ctx context.Context, event *models.ExtractionRequestedEvent) error
}

type QueueDispatcher struct {
	publisher ExtractionPublisher
}

func NewQueueDispatcher(publisher ExtractionPublisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job *models.ExtractionJob) error {
	event := &models.ExtractionRequestedEvent{
		JobID:     job.ID,
		Title:     job.Title,
		Student:   job.Student,
		Timestamp: time.Now(),
	}
	if err := d.publisher.PublishExtractionRequested(ctx, event); err != nil {
		return fmt.Errorf("failed to publish extraction request: %w", err)
	}
	return nil
}
