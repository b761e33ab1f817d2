package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/service"
	"github.com/RubachokBoss/evalmate/internal/worker"
)

func getStringQueryParam(r *http.Request, key, defaultValue string) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": message,
			"type":    http.StatusText(status),
		},
		"success":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

func writeValidationError(w http.ResponseWriter, status int, err *service.ValidationError) {
	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": err.Error(),
			"type":    http.StatusText(status),
			"fields":  err.Fields,
		},
		"success":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, status, response)
}

// handleServiceError maps domain errors onto HTTP statuses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *service.ValidationError
		storeErr      *service.StoreError
		extractionErr *service.ExtractionError
		gradingErr    *service.GradingError
		authErr       *service.AuthError
	)

	switch {
	case errors.Is(err, service.ErrDuplicateTitle):
		writeError(w, http.StatusConflict, service.ErrDuplicateTitle.Error())
	case errors.As(err, &validationErr):
		writeValidationError(w, http.StatusBadRequest, validationErr)
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, authErr.Err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrFeedbackNotFound),
		errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyFinalized),
		errors.Is(err, service.ErrNotSubmitted),
		errors.Is(err, service.ErrNoUpload),
		errors.Is(err, service.ErrNoDraft),
		errors.Is(err, service.ErrJobNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &extractionErr):
		writeError(w, http.StatusUnprocessableEntity, extractionErr.Error())
	case errors.As(err, &gradingErr):
		h.logger.Error().Err(err).Msg("Grading capability error")
		writeError(w, http.StatusBadGateway, "Feedback could not be generated, try again")
	case errors.As(err, &storeErr):
		h.logger.Error().Err(err).Msg("Storage error")
		writeError(w, http.StatusServiceUnavailable, "Storage is unavailable, nothing was changed")
	case errors.Is(err, worker.ErrPoolFull), errors.Is(err, worker.ErrPoolStopped):
		writeError(w, http.StatusServiceUnavailable, "Extraction queue is busy, retry the job later")
	default:
		h.logger.Error().Err(err).Msg("Service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

var attachmentReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "\"", "", "\r", "", "\n", "")

// attachmentName is a readable Content-Disposition filename part; not used for storage paths.
func attachmentName(s string) string {
	s = attachmentReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return "feedback"
	}
	return s
}
