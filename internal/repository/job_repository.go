package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

type JobRepository interface {
	Save(ctx context.Context, job *models.ExtractionJob) error
	// GetByID returns nil, nil when the job does not exist.
	GetByID(ctx context.Context, id string) (*models.ExtractionJob, error)
	List(ctx context.Context) ([]models.ExtractionJob, error)
	Delete(ctx context.Context, id string) error
}

type jobRepository struct {
	blobs  BlobStore
	logger zerolog.Logger
}

func NewJobRepository(blobs BlobStore, logger zerolog.Logger) JobRepository {
	return &jobRepository{
		blobs:  blobs,
		logger: logger,
	}
}

func (r *jobRepository) Save(ctx context.Context, job *models.ExtractionJob) error {
	job.SchemaVersion = models.SchemaVersion
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return r.blobs.Put(ctx, JobPath(job.ID), data, ContentTypeJSON)
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*models.ExtractionJob, error) {
	data, err := r.blobs.Get(ctx, JobPath(id))
	if errors.Is(err, ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job models.ExtractionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, storeErr("decode", JobPath(id), err)
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context) ([]models.ExtractionJob, error) {
	paths, err := r.blobs.List(ctx, jobsPrefix+"/")
	if err != nil {
		return nil, err
	}

	jobs := make([]models.ExtractionJob, 0, len(paths))
	for _, p := range paths {
		data, err := r.blobs.Get(ctx, p)
		if errors.Is(err, ErrBlobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var job models.ExtractionJob
		if err := json.Unmarshal(data, &job); err != nil {
			r.logger.Warn().Err(err).Str("path", p).Msg("Skipping unreadable job document")
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (r *jobRepository) Delete(ctx context.Context, id string) error {
	return r.blobs.Delete(ctx, JobPath(id))
}
