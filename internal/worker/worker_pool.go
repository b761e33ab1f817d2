package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPoolFull    = errors.New("worker pool task queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

const submitTimeout = 1 * time.Second

type Task func()

type WorkerPool struct {
	tasks         chan Task
	wg            sync.WaitGroup
	activeWorkers int
	maxWorkers    int
	logger        zerolog.Logger
	mu            sync.RWMutex
	stopMu        sync.RWMutex // guards stopped and closing tasks
	stopped       bool
}

// NewWorkerPool creates a pool; queueSize <= 0 means maxWorkers*10.
func NewWorkerPool(maxWorkers, queueSize int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = maxWorkers * 10
	}
	return &WorkerPool{
		tasks:      make(chan Task, queueSize),
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.logger.Info().Int("max_workers", wp.maxWorkers).Msg("Starting worker pool")

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Info().Int("workers_started", wp.maxWorkers).Msg("Worker pool started")
	return nil
}

// Stop waits for queued tasks to drain.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")

	wp.stopMu.Lock()
	if wp.stopped {
		wp.stopMu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	wp.stopMu.Unlock()

	wp.wg.Wait()

	wp.logger.Info().Msg("Worker pool stopped")
	return nil
}

func (wp *WorkerPool) Submit(task Task) error {
	wp.stopMu.RLock()
	defer wp.stopMu.RUnlock()
	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- task:
		return nil
	default:
		wp.logger.Warn().Msg("Worker pool task queue is full")
		select {
		case wp.tasks <- task:
			return nil
		case <-time.After(submitTimeout):
			wp.logger.Error().Msg("Failed to submit task to worker pool (timeout)")
			return ErrPoolFull
		}
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug().Int("worker_id", id).Msg("Worker started")

	for task := range wp.tasks {
		wp.logger.Debug().Int("worker_id", id).Msg("Worker processing task")

		wp.mu.Lock()
		wp.activeWorkers++
		wp.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.logger.Error().
						Int("worker_id", id).
						Interface("panic", r).
						Msg("Worker recovered from panic")
				}

				wp.mu.Lock()
				wp.activeWorkers--
				wp.mu.Unlock()
			}()

			task()
		}()
	}

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

// GetActiveWorkers returns the number of workers currently running a task.
func (wp *WorkerPool) GetActiveWorkers() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.activeWorkers
}

func (wp *WorkerPool) GetQueueLength() int {
	return len(wp.tasks)
}

func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"active_workers": wp.activeWorkers,
		"max_workers":    wp.maxWorkers,
		"queue_length":   len(wp.tasks),
		"queue_capacity": cap(wp.tasks),
	}
}
