package repository

import (
	"context"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

type SubmissionRepository interface {
	Load(ctx context.Context) (*models.SubmissionIndex, error)
	Update(ctx context.Context, fn func(*models.SubmissionIndex) error) (*models.SubmissionIndex, error)
}

type submissionRepository struct {
	doc *documentStore[models.SubmissionIndex, *models.SubmissionIndex]
}

func NewSubmissionRepository(blobs BlobStore, logger zerolog.Logger) SubmissionRepository {
	return &submissionRepository{
		doc: newDocumentStore[models.SubmissionIndex, *models.SubmissionIndex](blobs, SubmissionsPath, logger),
	}
}

func (r *submissionRepository) Load(ctx context.Context) (*models.SubmissionIndex, error) {
	return r.doc.load(ctx)
}

func (r *submissionRepository) Update(ctx context.Context, fn func(*models.SubmissionIndex) error) (*models.SubmissionIndex, error) {
	return r.doc.update(ctx, fn)
}
