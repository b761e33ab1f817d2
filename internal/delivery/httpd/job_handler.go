package httpd

import (
	"net/http"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/service"
)

// ownedJob loads the job from the path; another student's job is reported as missing.
func (h *Handler) ownedJob(w http.ResponseWriter, r *http.Request) (*models.ExtractionJob, bool) {
	id := urlParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return nil, false
	}

	job, err := h.jobService.GetJob(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return nil, false
	}

	if !canSeeStudent(sessionFromContext(r.Context()), job.Student) {
		h.handleServiceError(w, service.ErrJobNotFound)
		return nil, false
	}
	return job, true
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	writeSuccess(w, job)
}

func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	job, err := h.jobService.RetryJob(r.Context(), job.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccessStatus(w, http.StatusAccepted, job)
}
