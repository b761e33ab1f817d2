package repository

import (
	"context"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

type AssignmentRepository interface {
	Load(ctx context.Context) (*models.AssignmentIndex, error)
	// Update applies fn to a fresh copy of the index and persists it; fn may run more than once.
	Update(ctx context.Context, fn func(*models.AssignmentIndex) error) (*models.AssignmentIndex, error)
}

type assignmentRepository struct {
	doc *documentStore[models.AssignmentIndex, *models.AssignmentIndex]
}

func NewAssignmentRepository(blobs BlobStore, logger zerolog.Logger) AssignmentRepository {
	return &assignmentRepository{
		doc: newDocumentStore[models.AssignmentIndex, *models.AssignmentIndex](blobs, AssignmentsPath, logger),
	}
}

func (r *assignmentRepository) Load(ctx context.Context) (*models.AssignmentIndex, error) {
	return r.doc.load(ctx)
}

func (r *assignmentRepository) Update(ctx context.Context, fn func(*models.AssignmentIndex) error) (*models.AssignmentIndex, error) {
	return r.doc.update(ctx, fn)
}
