package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/rs/zerolog"
)

// DashboardService recomputes the derived views on every read.
type DashboardService interface {
	Teacher(ctx context.Context, subject string) (*models.TeacherDashboard, error)
	Student(ctx context.Context, student, subject string) (*models.StudentDashboard, error)
}

type dashboardService struct {
	assignmentRepo repository.AssignmentRepository
	blobs          repository.BlobStore
	location       *time.Location
	now            func() time.Time
	logger         zerolog.Logger
}

func NewDashboardService(
	assignmentRepo repository.AssignmentRepository,
	blobs repository.BlobStore,
	location *time.Location,
	logger zerolog.Logger,
) DashboardService {
	if location == nil {
		location = time.Local
	}
	return &dashboardService{
		assignmentRepo: assignmentRepo,
		blobs:          blobs,
		location:       location,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *dashboardService) Teacher(ctx context.Context, subject string) (*models.TeacherDashboard, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	return &models.TeacherDashboard{
		Categories: Categorize(FilterBySubject(idx.Assignments, subject)),
		Subjects:   SubjectsOf(idx.Assignments),
	}, nil
}

func (s *dashboardService) Student(ctx context.Context, student, subject string) (*models.StudentDashboard, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	feedbackModified, err := s.feedbackTimes(ctx, idx.Assignments, student)
	if err != nil {
		return nil, err
	}

	graded := make(map[string]bool, len(feedbackModified))
	for title := range feedbackModified {
		graded[title] = true
	}

	today := s.now()
	filtered := FilterBySubject(idx.Assignments, subject)

	return &models.StudentDashboard{
		View:          BuildStudentView(filtered, student, graded, today, s.location),
		Notifications: DeriveNotices(idx.Assignments, student, feedbackModified, today, s.location),
		Subjects:      SubjectsOf(idx.Assignments),
	}, nil
}

func (s *dashboardService) feedbackTimes(ctx context.Context, assignments []models.Assignment, student string) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for i := range assignments {
		title := assignments[i].Title
		modified, err := s.blobs.LastModified(ctx, repository.FeedbackPath(title, student))
		if errors.Is(err, repository.ErrBlobNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat feedback: %w", err)
		}
		out[title] = modified
	}
	return out, nil
}
