package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/rs/zerolog"
)

// errNoChange aborts a store transaction that has nothing to write.
var errNoChange = errors.New("no change")

const AllSubjects = "All"

type AssignmentService interface {
	CreateAssignment(ctx context.Context, req *models.CreateAssignmentRequest) (*models.Assignment, error)
	GetAssignment(ctx context.Context, title string) (*models.Assignment, error)
	// ListAssignments returns assignments in creation order; "" or "All" disables the subject filter.
	ListAssignments(ctx context.Context, subject string) ([]models.Assignment, error)
	DeleteAssignment(ctx context.Context, title string) error
	Subjects(ctx context.Context) ([]string, error)
}

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	submissionRepo repository.SubmissionRepository
	blobs          repository.BlobStore
	drafts         *DraftStore
	location       *time.Location
	now            func() time.Time
	logger         zerolog.Logger
}

func NewAssignmentService(
	assignmentRepo repository.AssignmentRepository,
	submissionRepo repository.SubmissionRepository,
	blobs repository.BlobStore,
	drafts *DraftStore,
	location *time.Location,
	logger zerolog.Logger,
) AssignmentService {
	if location == nil {
		location = time.Local
	}
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		submissionRepo: submissionRepo,
		blobs:          blobs,
		drafts:         drafts,
		location:       location,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *assignmentService) CreateAssignment(ctx context.Context, req *models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	deadline, err := time.ParseInLocation(models.DeadlineLayout, req.Deadline, s.location)
	if err != nil {
		return nil, newValidationError("deadline", "must match "+models.DeadlineLayout)
	}

	now := s.now()
	assignment := models.Assignment{
		Title:       strings.TrimSpace(req.Title),
		Subject:     strings.TrimSpace(req.Subject),
		Deadline:    deadline,
		ModelAnswer: req.ModelAnswer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.assignmentRepo.Update(ctx, func(idx *models.AssignmentIndex) error {
		if idx.Find(assignment.Title) != nil {
			return &ValidationError{Err: ErrDuplicateTitle, Fields: map[string]string{"title": "already exists"}}
		}
		idx.Add(assignment)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.logger.Info().
		Str("title", assignment.Title).
		Str("subject", assignment.Subject).
		Time("deadline", assignment.Deadline).
		Msg("Assignment created")

	created := assignment
	created.ExtractedTexts = map[string]string{}
	created.GradedStudents = map[string]models.GradedStudent{}
	created.SubmittedFiles = []string{}
	return &created, nil
}

func (s *assignmentService) GetAssignment(ctx context.Context, title string) (*models.Assignment, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	assignment := idx.Find(title)
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	return assignment, nil
}

func (s *assignmentService) ListAssignments(ctx context.Context, subject string) ([]models.Assignment, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	return FilterBySubject(idx.Assignments, subject), nil
}

func (s *assignmentService) Subjects(ctx context.Context) ([]string, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	return SubjectsOf(idx.Assignments), nil
}

func (s *assignmentService) DeleteAssignment(ctx context.Context, title string) error {
	var (
		removed  models.Assignment
		position int
	)
	_, err := s.assignmentRepo.Update(ctx, func(idx *models.AssignmentIndex) error {
		for i := range idx.Assignments {
			if idx.Assignments[i].Title == title {
				removed, position = idx.Assignments[i], i
				idx.Remove(title)
				return nil
			}
		}
		return errNoChange
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}

	_, err = s.submissionRepo.Update(ctx, func(idx *models.SubmissionIndex) error {
		idx.RemoveTitle(title)
		return nil
	})
	if err != nil {
		s.restoreAssignment(ctx, removed, position)
		return fmt.Errorf("failed to delete assignment submissions: %w", err)
	}

	s.drafts.DeleteTitle(title)

	for _, prefix := range repository.AssignmentPrefixes(title) {
		if err := repository.DeletePrefix(ctx, s.blobs, prefix); err != nil {
			s.logger.Warn().Err(err).Str("prefix", prefix).Msg("Failed to delete assignment blobs")
		}
	}

	s.logger.Info().Str("title", title).Msg("Assignment deleted")
	return nil
}

// restoreAssignment puts a removed assignment back after a failed delete.
func (s *assignmentService) restoreAssignment(ctx context.Context, a models.Assignment, position int) {
	_, err := s.assignmentRepo.Update(ctx, func(idx *models.AssignmentIndex) error {
		if idx.Find(a.Title) != nil {
			return errNoChange
		}
		if position > len(idx.Assignments) {
			position = len(idx.Assignments)
		}
		idx.Assignments = append(idx.Assignments[:position], append([]models.Assignment{a}, idx.Assignments[position:]...)...)
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		s.logger.Error().Err(err).Str("title", a.Title).Msg("Failed to restore assignment after failed delete")
	}
}

// FilterBySubject keeps assignments whose subject matches exactly; "" or "All" keeps everything.
func FilterBySubject(assignments []models.Assignment, subject string) []models.Assignment {
	out := make([]models.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if subject == "" || subject == AllSubjects || a.Subject == subject {
			out = append(out, a)
		}
	}
	return out
}

// SubjectsOf returns the distinct subjects, sorted.
func SubjectsOf(assignments []models.Assignment) []string {
	seen := make(map[string]struct{})
	subjects := []string{}
	for _, a := range assignments {
		if _, ok := seen[a.Subject]; ok || a.Subject == "" {
			continue
		}
		seen[a.Subject] = struct{}{}
		subjects = append(subjects, a.Subject)
	}
	sort.Strings(subjects)
	return subjects
}
