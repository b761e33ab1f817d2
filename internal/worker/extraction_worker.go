package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/service"
	"github.com/RubachokBoss/evalmate/internal/worker/queue"
	"github.com/rs/zerolog"
)

// ExtractionWorker runs extraction jobs requested over RabbitMQ.
type ExtractionWorker interface {
	Start(ctx context.Context) error
	Stop() error
	GetStats() WorkerStats
}

type WorkerStats struct {
	ActiveWorkers  int `json:"active_workers"`
	ProcessedToday int `json:"processed_today"`
	TotalProcessed int `json:"total_processed"`
	FailedJobs     int `json:"failed_jobs"`
	QueueLength    int `json:"queue_length"`
}

type extractionWorker struct {
	workerPool *WorkerPool
	requests   queue.ExtractionQueue
	runner     JobRunner
	logger     zerolog.Logger
	stats      WorkerStats
	statsMutex sync.RWMutex
	startTime  time.Time
}

func NewExtractionWorker(
	workerPool *WorkerPool,
	requests queue.ExtractionQueue,
	runner JobRunner,
	logger zerolog.Logger,
) ExtractionWorker {
	return &extractionWorker{
		workerPool: workerPool,
		requests:   requests,
		runner:     runner,
		logger:     logger,
		startTime:  time.Now(),
	}
}

func (w *extractionWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting extraction worker...")

	if err := w.workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	reqs, err := w.requests.Requests(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming extraction requests: %w", err)
	}

	go w.dispatch(ctx, reqs)

	w.logger.Info().Msg("Extraction worker started successfully")
	return nil
}

func (w *extractionWorker) Stop() error {
	w.logger.Info().Msg("Stopping extraction worker...")

	if err := w.requests.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close extraction queue")
	}

	if err := w.workerPool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	stats := w.GetStats()
	w.logger.Info().
		Int("total_processed", stats.TotalProcessed).
		Int("failed_jobs", stats.FailedJobs).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Extraction worker stopped")

	return nil
}

func (w *extractionWorker) dispatch(ctx context.Context, reqs <-chan queue.Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-reqs:
			if !ok {
				w.logger.Warn().Msg("Extraction queue closed")
				return
			}

			if err := w.workerPool.Submit(func() { w.handle(ctx, req) }); err != nil {
				w.logger.Error().Err(err).Msg("Failed to schedule extraction request")
				settle(w.logger, req.Requeue, "requeue")
			}
		}
	}
}

// handle acks done and hopeless requests and requeues the rest.
func (w *extractionWorker) handle(ctx context.Context, req queue.Request) {
	err := w.run(ctx, req)
	if err == nil {
		settle(w.logger, req.Ack, "ack")

		w.statsMutex.Lock()
		w.stats.TotalProcessed++
		if time.Since(req.QueuedAt).Hours() < 24 {
			w.stats.ProcessedToday++
		}
		w.statsMutex.Unlock()
		return
	}

	w.statsMutex.Lock()
	w.stats.FailedJobs++
	w.statsMutex.Unlock()

	if isPermanentError(err) {
		w.logger.Error().Err(err).Bool("redelivered", req.Redelivered).Msg("Dropping extraction request")
		settle(w.logger, req.Ack, "ack")
		return
	}
	w.logger.Warn().Err(err).Bool("redelivered", req.Redelivered).Msg("Extraction request failed, requeueing")
	settle(w.logger, req.Requeue, "requeue")
}

func settle(logger zerolog.Logger, fn func() error, action string) {
	if err := fn(); err != nil {
		logger.Error().Err(err).Str("action", action).Msg("Failed to settle extraction request")
	}
}

func (w *extractionWorker) run(ctx context.Context, req queue.Request) error {
	var event models.ExtractionRequestedEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return permanent(fmt.Errorf("failed to unmarshal extraction request: %w", err))
	}

	if strings.TrimSpace(event.JobID) == "" {
		return permanent(errors.New("empty job_id"))
	}

	w.logger.Info().
		Str("job_id", event.JobID).
		Str("title", event.Title).
		Str("student", event.Student).
		Msg("Running extraction job")

	err := w.runner.RunJob(ctx, event.JobID)
	if err == nil {
		return nil
	}

	// Задача уже помечена failed, повторная доставка ничего не изменит
	var extractionErr *service.ExtractionError
	if errors.As(err, &extractionErr) ||
		errors.Is(err, service.ErrJobNotFound) ||
		errors.Is(err, service.ErrNoUpload) ||
		errors.Is(err, service.ErrAssignmentNotFound) ||
		errors.Is(err, service.ErrAlreadyFinalized) {
		return permanent(err)
	}
	return err
}

func (w *extractionWorker) GetStats() WorkerStats {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()

	if backlog, err := w.requests.Backlog(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to read extraction backlog")
	} else {
		w.stats.QueueLength = backlog
	}

	w.stats.ActiveWorkers = w.workerPool.GetActiveWorkers()

	return w.stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
