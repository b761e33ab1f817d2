package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/rs/zerolog"
)

// Grader is the chat-completion capability that drafts feedback.
type Grader interface {
	Grade(ctx context.Context, messages []models.ChatMessage) (string, error)
}

var gradingPreamble = []string{
	"You are a bot that will grade assignments and provide feedback to students.",
	"You will take instructions from the teacher and grade the assignments accordingly.",
	"You will only introduce yourself when asked who are you, only then will you introduce yourself.",
	"Your name is EvalMate and you will only introduce yourself if asked.",
	"Do not write in bold or italic, you will not use bold or italic characters.",
}

// BuildGradingMessages builds a fresh conversation for one grading request.
func BuildGradingMessages(instructions, studentAnswer, modelAnswer string) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(gradingPreamble)+3)
	for _, content := range gradingPreamble {
		messages = append(messages, models.ChatMessage{Role: "system", Content: content})
	}
	if strings.TrimSpace(instructions) != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: "Grading Instructions: " + instructions})
	}
	messages = append(messages,
		models.ChatMessage{Role: "user", Content: "Student Answer: " + studentAnswer},
		models.ChatMessage{Role: "user", Content: "Model Answer: " + modelAnswer},
	)
	return messages
}

type GradingService interface {
	GenerateFeedback(ctx context.Context, title, student, instructions string) (string, error)
	Draft(ctx context.Context, title, student string) (string, error)
	Finalize(ctx context.Context, title, student, feedback string) error
	Feedback(ctx context.Context, title, student string) (*models.FeedbackBlob, error)
}

type gradingService struct {
	assignmentRepo repository.AssignmentRepository
	blobs          repository.BlobStore
	submissions    SubmissionService
	grader         Grader
	drafts         *DraftStore
	publisher      EventPublisher
	now            func() time.Time
	logger         zerolog.Logger
}

func NewGradingService(
	assignmentRepo repository.AssignmentRepository,
	blobs repository.BlobStore,
	submissions SubmissionService,
	grader Grader,
	drafts *DraftStore,
	publisher EventPublisher,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		assignmentRepo: assignmentRepo,
		blobs:          blobs,
		submissions:    submissions,
		grader:         grader,
		drafts:         drafts,
		publisher:      publisher,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *gradingService) gradable(ctx context.Context, title, student string) (*models.Assignment, error) {
	idx, err := s.assignmentRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	assignment := idx.Find(title)
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if !assignment.HasSubmission(student) {
		return nil, ErrNotSubmitted
	}
	if assignment.IsFinalized(student) {
		return nil, ErrAlreadyFinalized
	}
	return assignment, nil
}

func (s *gradingService) GenerateFeedback(ctx context.Context, title, student, instructions string) (string, error) {
	assignment, err := s.gradable(ctx, title, student)
	if err != nil {
		return "", err
	}

	studentAnswer, err := s.submissions.ExtractedText(ctx, title, student)
	if err != nil {
		return "", err
	}

	messages := BuildGradingMessages(instructions, studentAnswer, assignment.ModelAnswer)

	start := s.now()
	draft, err := s.grader.Grade(ctx, messages)
	if err != nil {
		return "", &GradingError{Err: err}
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return "", &GradingError{Err: errors.New("model returned an empty response")}
	}

	s.drafts.Put(title, student, draft)

	s.logger.Info().
		Str("title", title).
		Str("student", student).
		Bool("with_instructions", strings.TrimSpace(instructions) != "").
		Dur("duration", s.now().Sub(start)).
		Msg("Feedback draft generated")

	return draft, nil
}

func (s *gradingService) Draft(ctx context.Context, title, student string) (string, error) {
	if _, err := s.gradable(ctx, title, student); err != nil {
		return "", err
	}
	draft, ok := s.drafts.Get(title, student)
	if !ok {
		return "", ErrNoDraft
	}
	return draft, nil
}

func (s *gradingService) Finalize(ctx context.Context, title, student, feedback string) error {
	if err := ValidateStruct(&models.FinalizeFeedbackRequest{Feedback: feedback}); err != nil {
		return err
	}
	if _, err := s.gradable(ctx, title, student); err != nil {
		return err
	}
	if _, ok := s.drafts.Get(title, student); !ok {
		return ErrNoDraft
	}

	path := repository.FeedbackPath(title, student)

	// Блоб пишется под блокировкой документа, только после проверки finalized
	written := false
	_, err := s.assignmentRepo.Update(ctx, func(idx *models.AssignmentIndex) error {
		assignment := idx.Find(title)
		if assignment == nil {
			return ErrAssignmentNotFound
		}
		if !assignment.HasSubmission(student) {
			return ErrNotSubmitted
		}
		if assignment.IsFinalized(student) {
			return ErrAlreadyFinalized
		}
		if err := s.blobs.Put(ctx, path, []byte(feedback), repository.ContentTypeText); err != nil {
			return fmt.Errorf("failed to store feedback: %w", err)
		}
		written = true
		assignment.GradedStudents[student] = models.GradedStudent{Feedback: feedback, Finalized: true}
		assignment.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		// Фидбэк хранится только вместе с отметкой finalized
		if written && !errors.Is(err, ErrAlreadyFinalized) {
			if delErr := s.blobs.Delete(ctx, path); delErr != nil {
				s.logger.Error().Err(delErr).Str("path", path).Msg("Failed to remove orphan feedback")
			}
		}
		return fmt.Errorf("failed to finalize feedback: %w", err)
	}

	s.drafts.Delete(title, student)

	s.logger.Info().Str("title", title).Str("student", student).Msg("Feedback finalized")

	if s.publisher != nil {
		event := &models.FeedbackFinalizedEvent{Title: title, Student: student, Timestamp: s.now()}
		if err := s.publisher.PublishFeedbackFinalized(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("title", title).Msg("Failed to publish feedback finalized event")
		}
	}

	return nil
}

func (s *gradingService) Feedback(ctx context.Context, title, student string) (*models.FeedbackBlob, error) {
	path := repository.FeedbackPath(title, student)

	data, err := s.blobs.Get(ctx, path)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}

	modified, err := s.blobs.LastModified(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat feedback: %w", err)
	}

	return &models.FeedbackBlob{
		Title:     title,
		Student:   student,
		Text:      string(data),
		UpdatedAt: modified,
	}, nil
}
