package httpd

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/service"
	"github.com/go-chi/chi/v5"
)

// urlParam returns a decoded path parameter; titles may contain escaped characters.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if value, err := url.PathUnescape(raw); err == nil {
		return value
	}
	return raw
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	assignment, err := h.assignmentService.CreateAssignment(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, assignment)
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	subject := getStringQueryParam(r, "subject", service.AllSubjects)
	session := sessionFromContext(r.Context())

	ctx := r.Context()
	assignments, err := h.assignmentService.ListAssignments(ctx, subject)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	subjects, err := h.assignmentService.Subjects(ctx)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if session.Role != models.RoleTeacher {
		summaries := make([]models.AssignmentSummary, 0, len(assignments))
		for i := range assignments {
			summaries = append(summaries, models.Summarize(&assignments[i]))
		}
		writeSuccess(w, map[string]interface{}{
			"assignments": summaries,
			"subjects":    subjects,
			"total":       len(summaries),
		})
		return
	}

	writeSuccess(w, map[string]interface{}{
		"assignments": assignments,
		"categories":  service.Categorize(assignments),
		"subjects":    subjects,
		"total":       len(assignments),
	})
}

func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	session := sessionFromContext(r.Context())

	assignment, err := h.assignmentService.GetAssignment(r.Context(), title)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if session.Role != models.RoleTeacher {
		writeSuccess(w, map[string]interface{}{
			"assignment": models.Summarize(assignment),
			"submitted":  assignment.HasSubmission(session.Username),
			"finalized":  assignment.IsFinalized(session.Username),
		})
		return
	}

	writeSuccess(w, assignment)
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")

	if err := h.assignmentService.DeleteAssignment(r.Context(), title); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]interface{}{
		"message": "Assignment deleted successfully",
	})
}
