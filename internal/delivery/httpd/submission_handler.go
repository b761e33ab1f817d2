package httpd

import (
	"errors"
	"io"
	"net/http"
)

func (h *Handler) UploadSubmission(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	session := sessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File size exceeds limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	pdf, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	resp, err := h.submissionService.Upload(r.Context(), title, session.Username, pdf)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, resp)
}

func (h *Handler) RequestExtraction(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	session := sessionFromContext(r.Context())

	job, err := h.jobService.RequestExtraction(r.Context(), title, session.Username)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccessStatus(w, http.StatusAccepted, job)
}
