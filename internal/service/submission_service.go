package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/RubachokBoss/evalmate/pkg/hash"
	"github.com/rs/zerolog"
)

// EventPublisher announces committed domain changes. Publishing is best-effort.
type EventPublisher interface {
	PublishSubmissionRecorded(ctx context.Context, event *models.SubmissionRecordedEvent) error
	PublishFeedbackFinalized(ctx context.Context, event *models.FeedbackFinalizedEvent) error
}

var pdfMagic = []byte("%PDF")

type SubmissionService interface {
	// Upload stores the raw PDF; the assignment is not changed until extraction succeeds.
	Upload(ctx context.Context, title, student string, pdf []byte) (*models.UploadResponse, error)
	// Submit extracts text from the PDF and records the submission.
	Submit(ctx context.Context, title, student string, pdf []byte, progress ProgressFunc) error
	// Record stores extracted text and links it in both stores.
	Record(ctx context.Context, title, student, uploadPath, text string) error
	ExtractedText(ctx context.Context, title, student string) (string, error)
}

type submissionService struct {
	assignmentRepo repository.AssignmentRepository
	submissionRepo repository.SubmissionRepository
	blobs          repository.BlobStore
	extraction     ExtractionService
	hasher         hash.Hasher
	drafts         *DraftStore
	publisher      EventPublisher
	now            func() time.Time
	logger         zerolog.Logger
}

func NewSubmissionService(
	assignmentRepo repository.AssignmentRepository,
	submissionRepo repository.SubmissionRepository,
	blobs repository.BlobStore,
	extraction ExtractionService,
	hasher hash.Hasher,
	drafts *DraftStore,
	publisher EventPublisher,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		assignmentRepo: assignmentRepo,
		submissionRepo: submissionRepo,
		blobs:          blobs,
		extraction:     extraction,
		hasher:         hasher,
		drafts:         drafts,
		publisher:      publisher,
		now:            time.Now,
		logger:         logger,
	}
}

// openAssignment loads an assignment that can still accept a submission from student.
func (s *submissionService) openAssignment(ctx context.Context, title, student string) (*models.Assignment, error) {
	if strings.TrimSpace(student) == "" {
		return nil, newValidationError("student", "cannot be blank")
	}

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
	return assignment, nil
}

func validatePDF(pdf []byte) error {
	if len(pdf) == 0 {
		return newValidationError("file", "is empty")
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return newValidationError("file", "must be a PDF document")
	}
	return nil
}

func (s *submissionService) Upload(ctx context.Context, title, student string, pdf []byte) (*models.UploadResponse, error) {
	if err := validatePDF(pdf); err != nil {
		return nil, err
	}
	if _, err := s.openAssignment(ctx, title, student); err != nil {
		return nil, err
	}

	sum, err := s.hasher.Calculate(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to hash upload: %w", err)
	}

	path := repository.UploadPath(title, student)
	if err := s.blobs.Put(ctx, path, pdf, repository.ContentTypePDF); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Info().
		Str("title", title).
		Str("student", student).
		Str("sha256", sum.Hash).
		Int64("size", sum.Size).
		Msg("Submission uploaded")

	return &models.UploadResponse{
		Title:      title,
		Student:    student,
		UploadPath: path,
		SHA256:     sum.Hash,
		Size:       sum.Size,
	}, nil
}

func (s *submissionService) Submit(ctx context.Context, title, student string, pdf []byte, progress ProgressFunc) error {
	if err := validatePDF(pdf); err != nil {
		return err
	}
	assignment, err := s.openAssignment(ctx, title, student)
	if err != nil {
		return err
	}

	text, err := s.extraction.Extract(ctx, pdf, assignment.Subject, progress)
	if err != nil {
		return err
	}

	uploadPath := repository.UploadPath(title, student)
	if err := s.blobs.Put(ctx, uploadPath, pdf, repository.ContentTypePDF); err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}

	return s.Record(ctx, title, student, uploadPath, text)
}

func (s *submissionService) Record(ctx context.Context, title, student, uploadPath, text string) error {
	if strings.TrimSpace(text) == "" {
		return &ExtractionError{Err: ErrEmptyExtraction}
	}

	textPath := repository.ExtractedTextPath(title, student)

	previousText, err := s.blobs.Get(ctx, textPath)
	hadPrevious := err == nil
	if err != nil && !errors.Is(err, repository.ErrBlobNotFound) {
		return fmt.Errorf("failed to read extracted text: %w", err)
	}

	if err := s.blobs.Put(ctx, textPath, []byte(text), repository.ContentTypeText); err != nil {
		return fmt.Errorf("failed to store extracted text: %w", err)
	}

	restoreText := func() {
		var err error
		if hadPrevious {
			err = s.blobs.Put(ctx, textPath, previousText, repository.ContentTypeText)
		} else {
			err = s.blobs.Delete(ctx, textPath)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("path", textPath).Msg("Failed to restore extracted text")
		}
	}

	var (
		previousPath string
		hadEntry     bool
	)
	_, err = s.assignmentRepo.Update(ctx, func(idx *models.AssignmentIndex) error {
		assignment := idx.Find(title)
		if assignment == nil {
			return ErrAssignmentNotFound
		}
		if assignment.IsFinalized(student) {
			return ErrAlreadyFinalized
		}
		previousPath, hadEntry = assignment.ExtractedTexts[student]
		assignment.ExtractedTexts[student] = textPath
		if uploadPath != "" {
			assignment.SubmittedFiles = append(assignment.SubmittedFiles, uploadPath)
		}
		assignment.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		restoreText()
		return fmt.Errorf("failed to record submission: %w", err)
	}

	_, err = s.submissionRepo.Update(ctx, func(idx *models.SubmissionIndex) error {
		idx.Add(student, title)
		return nil
	})
	if err != nil {
		s.revertRecord(ctx, title, student, uploadPath, previousPath, hadEntry)
		restoreText()
		return fmt.Errorf("failed to update submission index: %w", err)
	}

	// Черновик был построен по прежнему тексту
	if s.drafts != nil {
		s.drafts.Delete(title, student)
	}

	s.logger.Info().
		Str("title", title).
		Str("student", student).
		Int("text_length", len(text)).
		Msg("Submission recorded")

	if s.publisher != nil {
		event := &models.SubmissionRecordedEvent{
			Title:     title,
			Student:   student,
			TextPath:  textPath,
			Timestamp: s.now(),
		}
		if err := s.publisher.PublishSubmissionRecorded(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("title", title).Msg("Failed to publish submission recorded event")
		}
	}

	return nil
}

// revertRecord undoes the assignment side of Record when the submission index write fails.
func (s *submissionService) revertRecord(ctx context.Context, title, student, uploadPath, previousPath string, hadEntry bool) {
	_, err := s.assignmentRepo.Update(ctx, func(idx *models.AssignmentIndex) error {
		assignment := idx.Find(title)
		if assignment == nil {
			return errNoChange
		}
		if hadEntry {
			assignment.ExtractedTexts[student] = previousPath
		} else {
			delete(assignment.ExtractedTexts, student)
		}
		if uploadPath != "" {
			for i := len(assignment.SubmittedFiles) - 1; i >= 0; i-- {
				if assignment.SubmittedFiles[i] == uploadPath {
					assignment.SubmittedFiles = append(assignment.SubmittedFiles[:i], assignment.SubmittedFiles[i+1:]...)
					break
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		s.logger.Error().Err(err).Str("title", title).Str("student", student).Msg("Failed to revert submission")
	}
}

func (s *submissionService) ExtractedText(ctx context.Context, title, student string) (string, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load assignments: %w", err)
	}
	assignment := idx.Find(title)
	if assignment == nil {
		return "", ErrAssignmentNotFound
	}
	path, ok := assignment.ExtractedTexts[student]
	if !ok {
		return "", ErrNotSubmitted
	}

	data, err := s.blobs.Get(ctx, path)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return "", ErrNotSubmitted
	}
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text: %w", err)
	}
	return string(data), nil
}
