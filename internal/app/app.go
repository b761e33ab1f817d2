package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/RubachokBoss/evalmate/internal/config"
	"github.com/RubachokBoss/evalmate/internal/delivery/httpd"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/RubachokBoss/evalmate/internal/service"
	"github.com/RubachokBoss/evalmate/internal/service/integration"
	"github.com/RubachokBoss/evalmate/internal/service/raster"
	"github.com/RubachokBoss/evalmate/internal/worker"
	"github.com/RubachokBoss/evalmate/internal/worker/queue"
	"github.com/RubachokBoss/evalmate/pkg/hash"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type App struct {
	server           *http.Server
	logger           zerolog.Logger
	config           *config.Config
	pool             *worker.WorkerPool
	jobService       service.JobService
	extractionWorker worker.ExtractionWorker
	rabbitmqClient   integration.RabbitMQClient
	closeStorage     func() error

	ctx    context.Context
	cancel context.CancelFunc
}

// components is everything both the API server and the queue worker are built from.
type components struct {
	blobs        repository.BlobStore
	closeStorage func() error
	rabbitmq     integration.RabbitMQClient
	publisher    service.EventPublisher
	pool         *worker.WorkerPool
	services     httpd.Services
	jobs         service.JobService
}

// New builds the API server. With extraction.dispatch=local jobs run in-process,
// with rabbitmq they are published for a separate worker.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	local := cfg.Extraction.Dispatch == "local"
	c, err := build(ctx, cfg, log, !local)
	if err != nil {
		cancel()
		return nil, err
	}

	var pool *worker.WorkerPool
	if local {
		pool = c.pool
	}

	handler := httpd.NewHandler(c.services, cfg.Server.MaxUploadSize, log)
	addReadiness(handler, c)

	return &App{
		server:         newServer(cfg, log, handler),
		logger:         log,
		config:         cfg,
		pool:           pool,
		jobService:     c.jobs,
		rabbitmqClient: c.rabbitmq,
		closeStorage:   c.closeStorage,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// NewWorker builds the queue worker: it consumes extraction requests and serves only /health and /ready.
func NewWorker(cfg *config.Config, log zerolog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c, err := build(ctx, cfg, log, true)
	if err != nil {
		cancel()
		return nil, err
	}

	requests, err := queue.NewExtractionQueue(cfg.RabbitMQ, cfg.Extraction.Workers, log)
	if err != nil {
		c.close(log)
		cancel()
		return nil, fmt.Errorf("failed to open extraction queue: %w", err)
	}

	extractionWorker := worker.NewExtractionWorker(c.pool, requests, c.jobs, log)

	handler := httpd.NewHandler(httpd.Services{}, cfg.Server.MaxUploadSize, log)
	addReadiness(handler, c)
	handler.SetStats(func() map[string]interface{} {
		stats := extractionWorker.GetStats()
		return map[string]interface{}{
			"active_workers":  stats.ActiveWorkers,
			"processed_today": stats.ProcessedToday,
			"total_processed": stats.TotalProcessed,
			"failed_jobs":     stats.FailedJobs,
			"queue_length":    stats.QueueLength,
		}
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(httpd.Recovery(log))
	router.Get("/health", handler.HealthCheck)
	router.Get("/ready", handler.ReadyCheck)

	return &App{
		server: &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger:           log,
		config:           cfg,
		jobService:       c.jobs,
		extractionWorker: extractionWorker,
		rabbitmqClient:   c.rabbitmq,
		closeStorage:     c.closeStorage,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

func build(ctx context.Context, cfg *config.Config, log zerolog.Logger, requireBroker bool) (*components, error) {
	location, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	blobs, closeStorage, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	log.Info().Str("provider", blobs.Provider()).Msg("Storage ready")

	c := &components{blobs: blobs, closeStorage: closeStorage}

	rabbitmqClient, err := integration.NewRabbitMQClient(
		cfg.RabbitMQ.URL,
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.RoutingKey,
		cfg.RabbitMQ.QueueName,
		log,
	)
	switch {
	case err == nil:
		c.rabbitmq = rabbitmqClient
		c.publisher = rabbitmqClient
	case requireBroker:
		c.close(log)
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	default:
		// Без брокера события только пишутся в лог
		log.Warn().Err(err).Msg("RabbitMQ unavailable, domain events will only be logged")
		c.publisher = integration.NewLogPublisher(log)
	}

	// Репозитории
	assignmentRepo := repository.NewAssignmentRepository(blobs, log)
	submissionRepo := repository.NewSubmissionRepository(blobs, log)
	jobRepo := repository.NewJobRepository(blobs, log)
	drafts := service.NewDraftStore()
	hasher := hash.NewDocumentHasher(hash.SHA256)

	// Внешние сервисы распознавания и оценки
	visionClient := integration.NewVisionClient(
		cfg.Vision.URL,
		cfg.Vision.APIKey,
		cfg.Vision.Timeout,
		cfg.Vision.RetryCount,
		cfg.Vision.RetryDelay,
		log,
	)
	mathClient := integration.NewMathOCRClient(
		cfg.MathOCR.URL,
		cfg.MathOCR.APIKey,
		cfg.MathOCR.Timeout,
		cfg.MathOCR.RetryCount,
		cfg.MathOCR.RetryDelay,
		log,
	)
	llmClient := integration.NewLLMClient(
		cfg.LLM.URL,
		cfg.LLM.APIKey,
		integration.LLMOptions{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			TopP:        cfg.LLM.TopP,
		},
		cfg.LLM.Timeout,
		cfg.LLM.RetryCount,
		cfg.LLM.RetryDelay,
		log,
	)

	extractionService := service.NewExtractionService(
		raster.NewImagickRasterizer(cfg.Extraction.DPI, log),
		visionClient,
		mathClient,
		cfg.Extraction.PageTimeout,
		cfg.Extraction.PageRetries,
		log,
	)

	// Сервисы
	assignmentService := service.NewAssignmentService(assignmentRepo, submissionRepo, blobs, drafts, location, log)
	submissionService := service.NewSubmissionService(assignmentRepo, submissionRepo, blobs, extractionService, hasher, drafts, c.publisher, log)
	gradingService := service.NewGradingService(assignmentRepo, blobs, submissionService, llmClient, drafts, c.publisher, log)

	c.pool = worker.NewWorkerPool(cfg.Extraction.Workers, cfg.Extraction.QueueSize, log)

	var dispatcher service.JobDispatcher
	var local *worker.LocalDispatcher
	if requireBroker {
		dispatcher = worker.NewQueueDispatcher(c.rabbitmq)
	} else {
		local = worker.NewLocalDispatcher(ctx, c.pool, log)
		dispatcher = local
	}

	c.jobs = service.NewJobService(jobRepo, assignmentRepo, blobs, extractionService, submissionService, hasher, dispatcher, log)
	if local != nil {
		local.Bind(c.jobs)
	}

	c.services = httpd.Services{
		Auth: service.NewAuthService(
			cfg.Auth.Teachers,
			cfg.Auth.Students,
			cfg.Auth.JWTSecret,
			cfg.Auth.TokenTTL,
			log,
		),
		Assignments: assignmentService,
		Submissions: submissionService,
		Jobs:        c.jobs,
		Grading:     gradingService,
		Dashboards:  service.NewDashboardService(assignmentRepo, blobs, location, log),
		Exports:     service.NewExportService(assignmentService, gradingService, location, log),
	}

	if len(cfg.Auth.Teachers) == 0 {
		log.Warn().Msg("No teacher accounts configured")
	}

	return c, nil
}

func (c *components) close(log zerolog.Logger) {
	if c.rabbitmq != nil {
		if err := c.rabbitmq.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}
	if c.closeStorage != nil {
		if err := c.closeStorage(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}
}

func addReadiness(handler *httpd.Handler, c *components) {
	blobs := c.blobs
	handler.AddReadinessCheck("storage", func(ctx context.Context) error {
		_, err := blobs.Exists(ctx, repository.AssignmentsPath)
		return err
	})
	handler.SetStats(c.pool.GetStats)
}

func newServer(cfg *config.Config, log zerolog.Logger, handler *httpd.Handler) *http.Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpd.RequestLogger(log))
	router.Use(httpd.Recovery(log))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	router.Use(httpd.NewCORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
		cfg.CORS.ExposedHeaders,
		cfg.CORS.AllowCredentials,
		cfg.CORS.MaxAge,
	))

	handler.RegisterRoutes(router)

	return &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// Run blocks serving HTTP until Shutdown.
func (a *App) Run() error {
	if a.extractionWorker != nil {
		if err := a.extractionWorker.Start(a.ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start extraction worker")
			return err
		}
	} else if a.pool != nil {
		if err := a.pool.Start(a.ctx); err != nil {
			return err
		}
		// Задачи, прерванные прошлым перезапуском, ставятся в очередь заново
		if _, err := a.jobService.ResumePending(a.ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to resume pending jobs")
		}
	}

	a.logger.Info().Msgf("Starting evalmate on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down evalmate...")

	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		a.logger.Error().Err(serverErr).Msg("Failed to shutdown HTTP server")
	}

	if a.extractionWorker != nil {
		if err := a.extractionWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop extraction worker")
		}
	} else if a.pool != nil {
		if err := a.pool.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop worker pool")
		}
	}
	a.cancel()

	if a.rabbitmqClient != nil {
		if err := a.rabbitmqClient.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close storage")
		}
	}

	raster.Terminate()

	a.logger.Info().Msg("evalmate stopped")
	return serverErr
}
