package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/RubachokBoss/evalmate/pkg/hash"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobDispatcher hands a persisted job to whatever executes it.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *models.ExtractionJob) error
}

type JobService interface {
	RequestExtraction(ctx context.Context, title, student string) (*models.ExtractionJob, error)
	GetJob(ctx context.Context, id string) (*models.ExtractionJob, error)
	RetryJob(ctx context.Context, id string) (*models.ExtractionJob, error)
	// RunJob executes a job; completed jobs are skipped.
	RunJob(ctx context.Context, id string) error
	// ResumePending re-dispatches jobs left queued by a previous process.
	ResumePending(ctx context.Context) (int, error)
}

type jobService struct {
	jobRepo        repository.JobRepository
	assignmentRepo repository.AssignmentRepository
	blobs          repository.BlobStore
	extraction     ExtractionService
	submissions    SubmissionService
	hasher         hash.Hasher
	dispatcher     JobDispatcher
	now            func() time.Time
	logger         zerolog.Logger
}

func NewJobService(
	jobRepo repository.JobRepository,
	assignmentRepo repository.AssignmentRepository,
	blobs repository.BlobStore,
	extraction ExtractionService,
	submissions SubmissionService,
	hasher hash.Hasher,
	dispatcher JobDispatcher,
	logger zerolog.Logger,
) JobService {
	return &jobService{
		jobRepo:        jobRepo,
		assignmentRepo: assignmentRepo,
		blobs:          blobs,
		extraction:     extraction,
		submissions:    submissions,
		hasher:         hasher,
		dispatcher:     dispatcher,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *jobService) RequestExtraction(ctx context.Context, title, student string) (*models.ExtractionJob, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	assignment := idx.Find(title)
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if assignment.IsFinalized(student) {
		return nil, ErrAlreadyFinalized
	}

	uploadPath := repository.UploadPath(title, student)
	pdf, err := s.blobs.Get(ctx, uploadPath)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return nil, ErrNoUpload
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	sum, err := s.hasher.Calculate(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to hash upload: %w", err)
	}

	now := s.now()
	job := &models.ExtractionJob{
		ID:           uuid.New().String(),
		Title:        title,
		Student:      student,
		Subject:      assignment.Subject,
		Pipeline:     Route(assignment.Subject),
		Status:       models.JobStatusQueued,
		UploadPath:   uploadPath,
		UploadSHA256: sum.Hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.dispatch(ctx, job); err != nil {
		return job, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("title", title).
		Str("student", student).
		Str("pipeline", job.Pipeline.String()).
		Msg("Extraction requested")

	return job, nil
}

// dispatch marks the job failed when it cannot be handed off, so it stays retryable.
func (s *jobService) dispatch(ctx context.Context, job *models.ExtractionJob) error {
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
		job.UpdatedAt = s.now()
		if saveErr := s.jobRepo.Save(ctx, job); saveErr != nil {
			s.logger.Error().Err(saveErr).Str("job_id", job.ID).Msg("Failed to save undispatched job")
		}
		return fmt.Errorf("failed to dispatch job: %w", err)
	}
	return nil
}

func (s *jobService) GetJob(ctx context.Context, id string) (*models.ExtractionJob, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *jobService) RetryJob(ctx context.Context, id string) (*models.ExtractionJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusFailed {
		return nil, ErrJobNotRetryable
	}

	job.Status = models.JobStatusQueued
	job.Error = ""
	job.FailedPages = nil
	job.Progress = 0
	job.PagesDone = 0
	job.StartedAt = nil
	job.CompletedAt = nil
	job.UpdatedAt = s.now()
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.dispatch(ctx, job); err != nil {
		return job, err
	}

	s.logger.Info().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("Extraction job retried")
	return job, nil
}

func (s *jobService) ResumePending(ctx context.Context) (int, error) {
	jobs, err := s.jobRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	resumed := 0
	for i := range jobs {
		job := &jobs[i]
		if job.Status != models.JobStatusQueued && job.Status != models.JobStatusRunning {
			continue
		}
		if err := s.dispatch(ctx, job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to resume job")
			continue
		}
		resumed++
	}
	return resumed, nil
}

func (s *jobService) RunJob(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusCompleted {
		s.logger.Warn().Str("job_id", id).Msg("Job already completed, skipping")
		return nil
	}

	started := s.now()
	job.Status = models.JobStatusRunning
	job.Attempts++
	job.StartedAt = &started
	job.UpdatedAt = started
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	text, err := s.extract(ctx, job)
	if err == nil {
		err = s.submissions.Record(ctx, job.Title, job.Student, job.UploadPath, text)
	}
	if err != nil {
		s.fail(ctx, job, err)
		return err
	}

	completed := s.now()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &completed
	job.UpdatedAt = completed
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("title", job.Title).
		Str("student", job.Student).
		Int("pages", job.PagesTotal).
		Dur("duration", completed.Sub(started)).
		Msg("Extraction job completed")

	return nil
}

func (s *jobService) extract(ctx context.Context, job *models.ExtractionJob) (string, error) {
	pdf, err := s.blobs.Get(ctx, job.UploadPath)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return "", ErrNoUpload
	}
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	ok, err := s.hasher.Verify(pdf, job.UploadSHA256)
	if err != nil {
		return "", fmt.Errorf("failed to verify upload: %w", err)
	}
	if !ok {
		return "", &ExtractionError{Err: errors.New("upload was replaced after the job was requested")}
	}

	return s.extraction.Extract(ctx, pdf, job.Subject, func(done, total int) {
		job.PagesDone = done
		job.PagesTotal = total
		job.Progress = done * 100 / total
		job.UpdatedAt = s.now()
		if err := s.jobRepo.Save(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to save job progress")
		}
	})
}

func (s *jobService) fail(ctx context.Context, job *models.ExtractionJob, cause error) {
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()

	var extractionErr *ExtractionError
	if errors.As(cause, &extractionErr) {
		job.FailedPages = extractionErr.FailedPages
	}

	job.UpdatedAt = s.now()
	if err := s.jobRepo.Save(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to save failed job")
	}

	s.logger.Error().Err(cause).
		Str("job_id", job.ID).
		Str("title", job.Title).
		Str("student", job.Student).
		Msg("Extraction job failed")
}
