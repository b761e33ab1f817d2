package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RubachokBoss/evalmate/internal/repository"
)

// Ошибки состояния домена, delivery-слой маппит их на HTTP-коды.
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrDuplicateTitle     = errors.New("assignment with this title already exists")
	ErrNotSubmitted       = errors.New("student has no submission for this assignment")
	ErrNoUpload           = errors.New("no uploaded submission for this assignment")
	ErrNoDraft            = errors.New("no feedback draft to finalize")
	ErrAlreadyFinalized   = errors.New("feedback is already finalized")
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrJobNotFound        = errors.New("extraction job not found")
	ErrJobNotRetryable    = errors.New("only failed jobs can be retried")
	ErrEmptyExtraction    = errors.New("no text could be extracted from the document")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired session token")
	ErrForbidden          = errors.New("not allowed for this role")
)

// StoreError is returned when the blob store fails; nothing was committed.
type StoreError = repository.StoreError

type ValidationError struct {
	Err    error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Err.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return e.Err }

var errInvalidInput = errors.New("invalid input")

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Err: errInvalidInput, Fields: map[string]string{field: message}}
}

// ExtractionError carries whatever text was recovered and the 1-based pages that failed.
type ExtractionError struct {
	Err         error
	PartialText string
	FailedPages []int
}

func (e *ExtractionError) Error() string {
	if len(e.FailedPages) > 0 {
		return fmt.Sprintf("extraction failed on pages %v: %v", e.FailedPages, e.Err)
	}
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type GradingError struct {
	Err error
}

func (e *GradingError) Error() string { return fmt.Sprintf("grading failed: %v", e.Err) }
func (e *GradingError) Unwrap() error { return e.Err }

type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }
