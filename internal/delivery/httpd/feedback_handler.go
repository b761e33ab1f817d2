package httpd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/RubachokBoss/evalmate/internal/service"
)

func (h *Handler) GenerateFeedback(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	student := urlParam(r, "student")

	var req models.GenerateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := service.ValidateStruct(&req); err != nil {
		h.handleServiceError(w, err)
		return
	}

	draft, err := h.gradingService.GenerateFeedback(r.Context(), title, student, req.Instructions)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, models.FeedbackDraftResponse{Title: title, Student: student, Draft: draft})
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	student := urlParam(r, "student")

	draft, err := h.gradingService.Draft(r.Context(), title, student)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, models.FeedbackDraftResponse{Title: title, Student: student, Draft: draft})
}

func (h *Handler) FinalizeFeedback(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	student := urlParam(r, "student")

	var req models.FinalizeFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.gradingService.Finalize(r.Context(), title, student, req.Feedback); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]interface{}{
		"title":     title,
		"student":   student,
		"finalized": true,
	})
}

func (h *Handler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	student := urlParam(r, "student")

	if !canSeeStudent(sessionFromContext(r.Context()), student) {
		writeError(w, http.StatusForbidden, service.ErrForbidden.Error())
		return
	}

	feedback, err := h.gradingService.Feedback(r.Context(), title, student)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, feedback)
}

func (h *Handler) GetFeedbackPDF(w http.ResponseWriter, r *http.Request) {
	title := urlParam(r, "title")
	student := urlParam(r, "student")

	if !canSeeStudent(sessionFromContext(r.Context()), student) {
		writeError(w, http.StatusForbidden, service.ErrForbidden.Error())
		return
	}

	data, err := h.exportService.FeedbackPDF(r.Context(), title, student)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	filename := attachmentName(title) + "_" + attachmentName(student) + ".pdf"
	w.Header().Set("Content-Type", repository.ContentTypePDF)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-cache")

	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
